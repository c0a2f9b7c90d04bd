package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Settings holds process-level settings read from the environment.
type Settings struct {
	HAURL      string `env:"HA_URL,required"`
	HAToken    string `env:"HA_TOKEN,required"`
	ConfigPath string `env:"WAKEUP_CONFIG" envDefault:"wakeup_config.yaml"`
	APIPort    int    `env:"API_PORT" envDefault:"8126"`
	ReadOnly   bool   `env:"READ_ONLY" envDefault:"false"`
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("failed to parse environment settings: %w", err)
	}
	return &s, nil
}
