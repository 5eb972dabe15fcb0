package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.ServerURL)
	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, "auth.json", cfg.AuthFile)
	assert.Equal(t, 60*24*time.Hour, cfg.PurgeRetention)
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("LEXISYNC_SERVER_URL", "https://sync.example.com")
	t.Setenv("LEXISYNC_DATA_DIR", "/tmp/lexi")
	t.Setenv("LEXISYNC_PURGE_RETENTION_DAYS", "14")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.ServerURL)
	assert.Equal(t, "/tmp/lexi", cfg.DataDir)
	assert.Equal(t, 14*24*time.Hour, cfg.PurgeRetention)
}

func TestLoadConfig_JsonThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server_url": "https://json.example.com",
		"app_id": "json-app",
		"purge_retention_days": 30
	}`), 0o600))

	t.Setenv("LEXISYNC_CONFIG", path)
	t.Setenv("LEXISYNC_SERVER_URL", "https://env.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	// Env wins over JSON, JSON wins over defaults.
	assert.Equal(t, "https://env.example.com", cfg.ServerURL)
	assert.Equal(t, "json-app", cfg.AppID)
	assert.Equal(t, 30*24*time.Hour, cfg.PurgeRetention)
}

func TestLoadConfig_BadJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	t.Setenv("LEXISYNC_CONFIG", path)

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_MissingJsonFile(t *testing.T) {
	t.Setenv("LEXISYNC_CONFIG", filepath.Join(t.TempDir(), "nope.json"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidRetentionEnvIgnored(t *testing.T) {
	t.Setenv("LEXISYNC_PURGE_RETENTION_DAYS", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 60*24*time.Hour, cfg.PurgeRetention)
}
