// Package config loads and validates the wakeup music configuration.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Enqueue modes accepted by the Music Assistant play_media service
var validEnqueueModes = []string{"play", "replace", "next", "replace_next", "add"}

// DayConfig represents one weekday's schedule entry
type DayConfig struct {
	Active  bool   `yaml:"active"`
	Start   string `yaml:"start"`
	Turnoff string `yaml:"turnoff"`
}

// StringList unmarshals either a single YAML string or a sequence of strings.
// The configuration accepts `media_players: media_player.bedroom` as shorthand
// for a one-element list.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*l = StringList(list)
		return nil
	default:
		return fmt.Errorf("media player list must be a string or a sequence")
	}
}

// WakeupConfig represents the wakeup_config.yaml structure
type WakeupConfig struct {
	Days          map[string]DayConfig `yaml:"days"`
	MediaPlayers  StringList           `yaml:"media_players"`
	MusicSource   string               `yaml:"music_source"`
	InitialVolume float64              `yaml:"initial_volume"`
	TargetVolume  float64              `yaml:"target_volume"`
	RampDuration  int                  `yaml:"ramp_duration"`
	RampSteps     int                  `yaml:"ramp_steps"`
	PlayDuration  int                  `yaml:"play_duration"`
	Calendar      string               `yaml:"calendar"`

	// Music Assistant options
	UseMusicAssistant           *bool  `yaml:"use_music_assistant"`
	Enqueue                     string `yaml:"enqueue"`
	RadioMode                   bool   `yaml:"radio_mode"`
	MediaType                   string `yaml:"media_type"`
	MusicAssistantConfigEntryID string `yaml:"music_assistant_config_entry_id"`
}

// defaults returns a config pre-populated with default values; unmarshaling
// over it leaves unset keys at their defaults.
func defaults() WakeupConfig {
	return WakeupConfig{
		InitialVolume: 0.1,
		TargetVolume:  0.5,
		RampDuration:  300,
		RampSteps:     10,
		PlayDuration:  1500,
		Enqueue:       "replace",
	}
}

// LoadWakeupConfig loads the wakeup configuration from a YAML file
func LoadWakeupConfig(path string, logger *zap.Logger) (*WakeupConfig, error) {
	logger.Debug("Loading wakeup config", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wakeup config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse wakeup config: %w", err)
	}

	if err := cfg.Validate(logger); err != nil {
		return nil, err
	}

	logger.Info("Wakeup config loaded successfully",
		zap.Int("days", len(cfg.Days)),
		zap.Int("media_players", len(cfg.MediaPlayers)))
	return &cfg, nil
}

// Validate checks required parameters and value ranges. An invalid enqueue
// value degrades to "replace" with a warning instead of failing, matching the
// behavior users rely on; everything else is a hard configuration error.
func (c *WakeupConfig) Validate(logger *zap.Logger) error {
	if len(c.Days) == 0 {
		return fmt.Errorf("'days' parameter is required")
	}
	if len(c.MediaPlayers) == 0 {
		return fmt.Errorf("'media_players' parameter is required")
	}
	if c.MusicSource == "" {
		return fmt.Errorf("'music_source' parameter is required")
	}

	if c.InitialVolume < 0.0 || c.InitialVolume > 1.0 {
		return fmt.Errorf("invalid initial_volume: %v, must be between 0.0 and 1.0", c.InitialVolume)
	}
	if c.TargetVolume < 0.0 || c.TargetVolume > 1.0 {
		return fmt.Errorf("invalid target_volume: %v, must be between 0.0 and 1.0", c.TargetVolume)
	}
	if c.InitialVolume > c.TargetVolume {
		return fmt.Errorf("initial_volume (%v) must be <= target_volume (%v)", c.InitialVolume, c.TargetVolume)
	}

	if c.RampDuration <= 0 {
		return fmt.Errorf("invalid ramp_duration: %d, must be > 0", c.RampDuration)
	}
	if c.RampSteps <= 0 {
		return fmt.Errorf("invalid ramp_steps: %d, must be > 0", c.RampSteps)
	}
	if c.PlayDuration < 0 {
		return fmt.Errorf("invalid play_duration: %d, must be >= 0", c.PlayDuration)
	}

	valid := false
	for _, mode := range validEnqueueModes {
		if c.Enqueue == mode {
			valid = true
			break
		}
	}
	if !valid {
		logger.Warn("Invalid enqueue value, using default 'replace'",
			zap.String("enqueue", c.Enqueue))
		c.Enqueue = "replace"
	}

	return nil
}
