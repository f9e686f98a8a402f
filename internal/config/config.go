package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                    int    `env:"PORT" envDefault:"8080"`
	DatabaseURL             string `env:"DATABASE_URL,required"`
	RedisURL                string `env:"REDIS_URL,required"`
	NoteLockTTLSeconds      int    `env:"NOTE_LOCK_TTL_SECONDS" envDefault:"300"`
	CommandRateLimitPerMin  int    `env:"COMMAND_RATE_LIMIT_PER_MIN" envDefault:"120"`
	MaintenancePasswordHash string `env:"MAINTENANCE_PASSWORD_HASH"`
	LogLevel                string `env:"LOG_LEVEL" envDefault:"info"`
}

// NoteLockTTL is the window after which an unreleased note edit lock expires.
func (c *Config) NoteLockTTL() time.Duration {
	return time.Duration(c.NoteLockTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.MaintenancePasswordHash != "" {
		if !strings.HasPrefix(c.MaintenancePasswordHash, "$2a$") &&
			!strings.HasPrefix(c.MaintenancePasswordHash, "$2b$") &&
			!strings.HasPrefix(c.MaintenancePasswordHash, "$2y$") {
			return fmt.Errorf("MAINTENANCE_PASSWORD_HASH must be a bcrypt hash")
		}
	}

	if c.NoteLockTTLSeconds <= 0 {
		return fmt.Errorf("NOTE_LOCK_TTL_SECONDS must be positive")
	}

	if isProduction {
		if c.MaintenancePasswordHash == "" {
			log.Warn().Msg("MAINTENANCE_PASSWORD_HASH is empty in production: maintenance endpoint disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
