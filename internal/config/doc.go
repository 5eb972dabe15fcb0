// Package config loads runtime configuration for the sync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file named by the LEXISYNC_CONFIG environment variable.
//  3. Environment variables (LEXISYNC_SERVER_URL, LEXISYNC_APP_ID,
//     LEXISYNC_API_KEY, LEXISYNC_DATA_DIR, LEXISYNC_AUTH_FILE,
//     LEXISYNC_PURGE_RETENTION_DAYS), which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_url": "https://sync.example.com",
//	  "app_id": "lexisync",
//	  "api_key": "...",
//	  "data_dir": "/var/lib/lexisync",
//	  "auth_file": "/var/lib/lexisync/auth.json",
//	  "purge_retention_days": 60
//	}
package config
