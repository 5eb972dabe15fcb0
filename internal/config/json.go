package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations are
// expressed in days to match how users think about tombstone retention.
type JsonConfig struct {
	ServerURL          string `json:"server_url"`
	AppID              string `json:"app_id"`
	APIKey             string `json:"api_key"`
	DataDir            string `json:"data_dir"`
	AuthFile           string `json:"auth_file"`
	PurgeRetentionDays int    `json:"purge_retention_days"`
}

// parseJson overlays cfg with values from the file named by the
// LEXISYNC_CONFIG environment variable. No variable, no JSON stage.
func parseJson(cfg *Config) error {
	path := os.Getenv("LEXISYNC_CONFIG")
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.AppID != "" {
		cfg.AppID = jc.AppID
	}
	if jc.APIKey != "" {
		cfg.APIKey = jc.APIKey
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.AuthFile != "" {
		cfg.AuthFile = jc.AuthFile
	}
	if jc.PurgeRetentionDays > 0 {
		cfg.PurgeRetention = time.Duration(jc.PurgeRetentionDays) * 24 * time.Hour
	}
	return nil
}
