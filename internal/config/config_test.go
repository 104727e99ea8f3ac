package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DB_DSN", "TELEGRAM_TOKEN", "ENV", "HTTP_ADDR", "STORAGE", "REDIS_URL",
		"AMQP_URL", "REQUEST_EXPIRY_INTERVAL", "ALLOWED_ORIGINS", "TIMEZONE", "WEEK_FONT_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DSN", "postgres://localhost/scheduler")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 5*time.Minute, cfg.RequestExpiryInterval)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE", "Memory")
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("REQUEST_EXPIRY_INTERVAL", "30s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("TIMEZONE", "Europe/Moscow")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.RequestExpiryInterval)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "Europe/Moscow", cfg.Location().String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without dsn", map[string]string{}},
		{"unknown storage", map[string]string{"STORAGE": "sqlite"}},
		{"bad interval", map[string]string{"STORAGE": "memory", "REQUEST_EXPIRY_INTERVAL": "soon"}},
		{"negative interval", map[string]string{"STORAGE": "memory", "REQUEST_EXPIRY_INTERVAL": "-1m"}},
		{"bad timezone", map[string]string{"STORAGE": "memory", "TIMEZONE": "Mars/Olympus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
