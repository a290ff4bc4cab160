// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration
type Config struct {
	Host string `env:"ATLASGUESS_HOST" envDefault:""`
	Port int    `env:"ATLASGUESS_PORT" envDefault:"8080"`

	LogLevel string `env:"ATLASGUESS_LOG_LEVEL" envDefault:"info"`

	// MemoryOnly runs without Redis: in-memory snapshot store, no rating
	// or history persistence, guests only
	MemoryOnly bool   `env:"ATLASGUESS_MEMORY_ONLY" envDefault:"false"`
	RedisURL   string `env:"ATLASGUESS_REDIS_URL" envDefault:"redis://localhost:6379"`

	AdminSecret string `env:"ATLASGUESS_ADMIN_SECRET"`

	TickInterval time.Duration `env:"ATLASGUESS_TICK_INTERVAL" envDefault:"500ms"`
	GraceWindow  time.Duration `env:"ATLASGUESS_GRACE_WINDOW" envDefault:"30s"`
}

// Load parses configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
