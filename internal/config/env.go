package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays cfg with values from environment variables. The caller is
// expected to have loaded any .env file beforehand (the CLI does this via
// godotenv), so this stage only reads the process environment.
func parseEnv(cfg *Config) {
	if v := os.Getenv("LEXISYNC_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("LEXISYNC_APP_ID"); v != "" {
		cfg.AppID = v
	}
	if v := os.Getenv("LEXISYNC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("LEXISYNC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LEXISYNC_AUTH_FILE"); v != "" {
		cfg.AuthFile = v
	}
	if v := os.Getenv("LEXISYNC_PURGE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.PurgeRetention = time.Duration(days) * 24 * time.Hour
		}
	}
}
