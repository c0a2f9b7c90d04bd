package player

import (
	"fmt"

	"wakeupmusic/internal/ha"

	"go.uber.org/zap"
)

// States reported by media players that indicate playback is active or
// becoming active.
var activeStates = map[string]bool{
	"playing":   true,
	"buffering": true,
	"loading":   true,
}

// States that definitively mean a player is not playing. Used for the
// lenient Music Assistant verification rule.
var stoppedStates = map[string]bool{
	"idle":        true,
	"off":         true,
	"unavailable": true,
	"unknown":     true,
}

// IsActiveState reports whether a player state counts as playback in progress
func IsActiveState(state string) bool {
	return activeStates[state]
}

// IsStoppedState reports whether a player state counts as definitively stopped
func IsStoppedState(state string) bool {
	return stoppedStates[state]
}

// PlayOptions carries the playback request parameters for managed players
type PlayOptions struct {
	Enqueue       string
	RadioMode     bool
	MediaType     string
	ConfigEntryID string
}

// Controller issues media player commands through the HA client. All methods
// address one entity; the orchestrator iterates configured players.
type Controller struct {
	client ha.HAClient
	logger *zap.Logger
}

// NewController creates a new Controller
func NewController(client ha.HAClient, logger *zap.Logger) *Controller {
	return &Controller{
		client: client,
		logger: logger.Named("player"),
	}
}

// SetVolume sets a player's volume level (0..1)
func (c *Controller) SetVolume(entityID string, level float64) error {
	return c.client.CallService("media_player", "volume_set", map[string]interface{}{
		"entity_id":    entityID,
		"volume_level": level,
	})
}

// Play starts playback of source on a player, using the request shape
// appropriate for its capability kind. The source must already be normalized
// for that kind.
func (c *Controller) Play(entityID, source string, kind Kind, opts PlayOptions) error {
	if kind == ManagedService {
		data := map[string]interface{}{
			"entity_id": entityID,
			"media_id":  source,
			"enqueue":   opts.Enqueue,
		}
		if opts.RadioMode {
			data["radio_mode"] = true
		}
		if opts.ConfigEntryID != "" {
			data["config_entry_id"] = opts.ConfigEntryID
		}
		if err := c.client.CallService("music_assistant", "play_media", data); err != nil {
			return fmt.Errorf("music_assistant play_media on %s: %w", entityID, err)
		}
		return nil
	}

	mediaType := opts.MediaType
	if mediaType == "" {
		mediaType = "music"
	}
	err := c.client.CallService("media_player", "play_media", map[string]interface{}{
		"entity_id":          entityID,
		"media_content_id":   source,
		"media_content_type": mediaType,
	})
	if err != nil {
		return fmt.Errorf("media_player play_media on %s: %w", entityID, err)
	}
	return nil
}

// Stop stops playback on a player
func (c *Controller) Stop(entityID string) error {
	return c.client.CallService("media_player", "media_stop", map[string]interface{}{
		"entity_id": entityID,
	})
}

// State returns a player's reported state. Read failures are returned to the
// caller, which treats them as "unknown".
func (c *Controller) State(entityID string) (string, error) {
	state, err := c.client.GetState(entityID)
	if err != nil {
		return "", err
	}
	return state.State, nil
}

// Volume returns a player's current volume level. The second return is false
// when the level is unreadable.
func (c *Controller) Volume(entityID string) (float64, bool) {
	state, err := c.client.GetState(entityID)
	if err != nil {
		return 0, false
	}
	return state.FloatAttr("volume_level")
}
