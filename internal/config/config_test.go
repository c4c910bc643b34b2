package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENV", "RATING_STORE", "AI_FALLBACK_TIMEOUT", "PAIRING_INTERVAL",
		"AI_OPPONENT_NAME", "WS_MESSAGE_RATE", "WS_MESSAGE_BURST", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, RatingStoreMemory, cfg.RatingStore)
	assert.Equal(t, 8*time.Second, cfg.AIFallbackTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PairingInterval)
	assert.Equal(t, "Lingo Bot", cfg.AIOpponentName)
	assert.Equal(t, int64(5), cfg.WSMessageRate)
	assert.Equal(t, int64(10), cfg.WSMessageBurst)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("RATING_STORE", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AI_FALLBACK_TIMEOUT", "3s")
	t.Setenv("WS_MESSAGE_RATE", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, RatingStoreRedis, cfg.RatingStore)
	assert.Equal(t, 3*time.Second, cfg.AIFallbackTimeout)
	assert.Equal(t, int64(5), cfg.WSMessageRate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_RejectsDisabledAIFallback(t *testing.T) {
	t.Setenv("AI_FALLBACK_TIMEOUT", "0s")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Env:               "development",
			RatingStore:       RatingStoreMemory,
			PairingInterval:   time.Second,
			AIFallbackTimeout: 8 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory store", func(c *Config) {}, false},
		{"postgres without url", func(c *Config) { c.RatingStore = RatingStorePostgres }, true},
		{"postgres with url", func(c *Config) {
			c.RatingStore = RatingStorePostgres
			c.DatabaseURL = "postgres://localhost/lingo"
		}, false},
		{"redis without url", func(c *Config) { c.RatingStore = RatingStoreRedis }, true},
		{"unknown store", func(c *Config) { c.RatingStore = "mongo" }, true},
		{"zero pairing interval", func(c *Config) { c.PairingInterval = 0 }, true},
		{"negative ai timeout", func(c *Config) { c.AIFallbackTimeout = -time.Second }, true},
		{"zero ai timeout", func(c *Config) { c.AIFallbackTimeout = 0 }, true},
		{"production without secret", func(c *Config) { c.Env = "production" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
