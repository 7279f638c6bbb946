package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "") // восстановит исходное значение после теста
		os.Unsetenv(key)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	unsetEnv(t, "PORT", "APP_ENV", "LOG_LEVEL", "STORAGE_DRIVER", "SIGNUP_POINTS", "REDIS_ADDR", "REDIS_DB",
		"SUMMARY_CACHE_TTL", "DB_MAX_CONNS", "DB_MIN_CONNS")
	t.Setenv("PGHOST", "db")
	t.Setenv("PGPORT", "5432")
	t.Setenv("PGUSER", "u")
	t.Setenv("PGPASSWORD", "p")
	t.Setenv("PGDATABASE", "rewear")
	t.Setenv("PGSSLMODE", "disable")

	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, int64(100), cfg.SignupPoints)
	assert.Equal(t, 10, cfg.DatabaseConfig.MaxConns)
	assert.Equal(t, 2, cfg.DatabaseConfig.MinConns)
	assert.Equal(t, 5*time.Minute, cfg.RedisConfig.TTL)
	assert.Empty(t, cfg.RedisConfig.Addr)
	assert.Equal(t, "postgres://u:p@db:5432/rewear?sslmode=disable", cfg.DatabaseURL)
}

func TestEnvParsingFallsBack(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "many")
	t.Setenv("SUMMARY_CACHE_TTL", "soon")

	assert.Equal(t, 10, getEnvAsInt("DB_MAX_CONNS", 10))
	assert.Equal(t, time.Minute, getEnvAsDuration("SUMMARY_CACHE_TTL", time.Minute))

	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("SUMMARY_CACHE_TTL", "90s")
	assert.Equal(t, 25, getEnvAsInt("DB_MAX_CONNS", 10))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("SUMMARY_CACHE_TTL", time.Minute))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AppEnv:           "production",
			JWTSecret:        "secret",
			TelegramBotToken: "token",
			StorageDriver:    StoragePostgres,
			SignupPoints:     100,
			DatabaseConfig:   DatabaseConfig{MaxConns: 10, MinConns: 2},
		}
	}
	require.NoError(t, valid().Validate())

	local := valid()
	local.AppEnv = "local"
	local.TelegramBotToken = ""
	assert.NoError(t, local.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no jwt secret", func(c *Config) { c.JWTSecret = "" }},
		{"no bot token in production", func(c *Config) { c.TelegramBotToken = "" }},
		{"unknown driver", func(c *Config) { c.StorageDriver = "sqlite" }},
		{"negative signup points", func(c *Config) { c.SignupPoints = -1 }},
		{"pool bounds", func(c *Config) { c.DatabaseConfig.MinConns = 20 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
