package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetOverlay(t *testing.T) {
	t.Helper()
	mu.Lock()
	overlay = map[string]string{}
	mu.Unlock()
}

func TestLoadDefaults(t *testing.T) {
	resetOverlay(t)
	t.Setenv("EXTRACTOR", "mock")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 1, cfg.ExtractionMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.ExtractionTimeout)
	assert.Equal(t, 10*time.Minute, cfg.CaptureIdleTTL)
	assert.Equal(t, "Brasil", cfg.DefaultCountry)
	assert.Equal(t, "admin@logiflow.com", cfg.AdminEmail)
	assert.Equal(t, 7, cfg.TrialDays)
	assert.Equal(t, "none", cfg.EventsBackend)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadFileOverlayLosesToEnv(t *testing.T) {
	resetOverlay(t)

	path := filepath.Join(t.TempDir(), "logiflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extractor: mock\nport: 9090\ntrial_days: 14\ndefault_country: Portugal\ncapture_idle_ttl: 90s\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 14, cfg.TrialDays)
	assert.Equal(t, "Portugal", cfg.DefaultCountry)
	assert.Equal(t, "mock", cfg.Extractor)
	assert.Equal(t, 90*time.Second, cfg.CaptureIdleTTL)
}

func TestValidate(t *testing.T) {
	resetOverlay(t)

	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without url", env: map[string]string{"EXTRACTOR": "mock", "STORE_DRIVER": "postgres"}},
		{name: "gemini without key", env: map[string]string{"EXTRACTOR": "gemini"}},
		{name: "amqp without url", env: map[string]string{"EXTRACTOR": "mock", "EVENTS_BACKEND": "amqp"}},
		{name: "unknown backend", env: map[string]string{"EXTRACTOR": "mock", "EVENTS_BACKEND": "kafka"}},
		{name: "negative idle ttl", env: map[string]string{"EXTRACTOR": "mock", "CAPTURE_IDLE_TTL": "-1m"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv("GEMINI_API_KEY", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestResolveSkipsValidation(t *testing.T) {
	resetOverlay(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EXTRACTOR", "gemini")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/logiflow")

	cfg, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreDriver)

	_, err = Load()
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
