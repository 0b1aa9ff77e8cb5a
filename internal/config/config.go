// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-driven server configuration. The two
// positional command-line arguments (port and session timeout) take
// precedence over their environment counterparts.
type Config struct {
	Port           int           `env:"PARLEY_PORT" envDefault:"8888"`
	SessionTimeout time.Duration `env:"PARLEY_SESSION_TIMEOUT" envDefault:"3600s"`
	DBPath         string        `env:"PARLEY_DB" envDefault:"parley.db"`

	// APIAddr enables the HTTP admin API when non-empty.
	APIAddr string `env:"PARLEY_API_ADDR"`

	// TLS serves the chat protocol over a self-signed certificate.
	TLS bool `env:"PARLEY_TLS"`

	Debug        bool          `env:"PARLEY_DEBUG"`
	ReapInterval time.Duration `env:"PARLEY_REAP_INTERVAL" envDefault:"30s"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
