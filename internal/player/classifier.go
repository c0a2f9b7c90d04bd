// Package player provides media player capability classification, source
// normalization, and the device control surface used by the wakeup lifecycle.
package player

import (
	"strings"
	"sync"

	"wakeupmusic/internal/ha"

	"go.uber.org/zap"
)

// Kind classifies a media player's capability class
type Kind int

const (
	// Standard players speak the generic media_player play/stop/volume surface
	Standard Kind = iota
	// ManagedService players are Music Assistant entities with richer
	// queueing and URI semantics
	ManagedService
)

func (k Kind) String() string {
	if k == ManagedService {
		return "music_assistant"
	}
	return "standard"
}

// musicAssistantPlatform is the platform attribute reported by MASS entities
const musicAssistantPlatform = "music_assistant"

// Classifier determines, per entity, whether a media player is a Music
// Assistant entity. Results are cached for the process lifetime; a player's
// capability class is assumed static.
type Classifier struct {
	client   ha.HAClient
	override *bool // use_music_assistant config flag, nil when unset
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string]Kind
}

// NewClassifier creates a new Classifier
func NewClassifier(client ha.HAClient, override *bool, logger *zap.Logger) *Classifier {
	return &Classifier{
		client:   client,
		override: override,
		logger:   logger.Named("classifier"),
		cache:    make(map[string]Kind),
	}
}

// NameMatchesManaged reports whether the entity ID follows the Music
// Assistant naming convention (_mass or _ma suffix, or ma_ prefix, on the
// name part after the media_player domain).
func NameMatchesManaged(entityID string) bool {
	name := strings.TrimPrefix(entityID, "media_player.")
	return strings.HasSuffix(name, "_mass") ||
		strings.HasSuffix(name, "_ma") ||
		strings.HasPrefix(name, "ma_")
}

// Classify resolves the capability kind for a media player. Resolution order:
// cache, naming convention, explicit override, platform attribute, default
// Standard. Attribute query failures are swallowed; classification never
// returns an error.
func (c *Classifier) Classify(entityID string) Kind {
	c.mu.Lock()
	if kind, ok := c.cache[entityID]; ok {
		c.mu.Unlock()
		return kind
	}
	c.mu.Unlock()

	kind := c.resolve(entityID)

	c.mu.Lock()
	c.cache[entityID] = kind
	c.mu.Unlock()
	return kind
}

func (c *Classifier) resolve(entityID string) Kind {
	if NameMatchesManaged(entityID) {
		return ManagedService
	}

	if c.override != nil {
		if *c.override {
			return ManagedService
		}
		return Standard
	}

	state, err := c.client.GetState(entityID)
	if err != nil {
		c.logger.Debug("Could not check attributes, defaulting to standard",
			zap.String("entity_id", entityID),
			zap.Error(err))
		return Standard
	}
	if state.StringAttr("platform") == musicAssistantPlatform {
		return ManagedService
	}

	return Standard
}

// CheckPlatform warns when an entity matched the Music Assistant naming
// convention but its platform attribute disagrees, which usually means the
// hardware entity was configured instead of the MASS entity.
func (c *Classifier) CheckPlatform(entityID string) {
	if !NameMatchesManaged(entityID) {
		return
	}

	state, err := c.client.GetState(entityID)
	if err != nil {
		return
	}
	if platform := state.StringAttr("platform"); platform != musicAssistantPlatform {
		c.logger.Warn("Entity matches Music Assistant naming but platform differs; "+
			"ensure the MASS entity is configured, not the hardware entity",
			zap.String("entity_id", entityID),
			zap.String("platform", platform))
	}
}
