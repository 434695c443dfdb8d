// internal/config/config.go
// Environment-driven process configuration.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the entire externally visible configuration surface, read
// from the environment at startup.
type Config struct {
	Port          int    `env:"PORT" envDefault:"8080"`
	NatsURL       string `env:"NATS_URL"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON       bool   `env:"LOG_JSON" envDefault:"false"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSize    int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAge     int    `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
