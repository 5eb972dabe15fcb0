package config

import "time"

// Config holds runtime settings for the sync engine and its CLI.
type Config struct {
	// ServerURL is the base URL of the remote sync authority.
	ServerURL string

	// AppID and APIKey identify this application to the authority.
	AppID  string
	APIKey string

	// DataDir is where per-user replica databases live.
	DataDir string

	// AuthFile is the path of the stored token set.
	AuthFile string

	// PurgeRetention is how long confirmed tombstones are kept.
	PurgeRetention time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = ""
	c.DataDir = "."
	c.AuthFile = "auth.json"
	c.PurgeRetention = 60 * 24 * time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a JSON file (if one is named) and environment variables. Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	parseEnv(cfg)
	return cfg, nil
}
