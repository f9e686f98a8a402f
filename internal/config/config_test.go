package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("NoteLockTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{NoteLockTTLSeconds: 300}
		assert.Equal(t, 5*time.Minute, cfg.NoteLockTTL())
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts empty maintenance hash", func(t *testing.T) {
		cfg := &Config{NoteLockTTLSeconds: 300}
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects non-bcrypt maintenance hash", func(t *testing.T) {
		cfg := &Config{NoteLockTTLSeconds: 300, MaintenancePasswordHash: "plaintext"}
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("accepts bcrypt maintenance hash", func(t *testing.T) {
		cfg := &Config{NoteLockTTLSeconds: 300, MaintenancePasswordHash: "$2a$10$abcdefghijklmnopqrstuv"}
		assert.NoError(t, cfg.Validate(true))
	})

	t.Run("rejects non-positive lock TTL", func(t *testing.T) {
		cfg := &Config{NoteLockTTLSeconds: 0}
		assert.Error(t, cfg.Validate(false))
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                       os.Getenv("PORT"),
		"DATABASE_URL":               os.Getenv("DATABASE_URL"),
		"REDIS_URL":                  os.Getenv("REDIS_URL"),
		"NOTE_LOCK_TTL_SECONDS":      os.Getenv("NOTE_LOCK_TTL_SECONDS"),
		"COMMAND_RATE_LIMIT_PER_MIN": os.Getenv("COMMAND_RATE_LIMIT_PER_MIN"),
		"LOG_LEVEL":                  os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("NOTE_LOCK_TTL_SECONDS")
		os.Unsetenv("COMMAND_RATE_LIMIT_PER_MIN")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, 300, cfg.NoteLockTTLSeconds)
		assert.Equal(t, 120, cfg.CommandRateLimitPerMin)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "3000")
		os.Setenv("NOTE_LOCK_TTL_SECONDS", "60")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 60, cfg.NoteLockTTLSeconds)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}
