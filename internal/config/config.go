// Package config assembles runtime settings for the vault CLI from
// defaults, environment (including a .env file), an optional JSON file and
// command-line flags, in that order, later sources winning.
package config

import "time"

// Config holds runtime settings for the clinical vault.
//
// Units: intervals are time.Durations (e.g. 5*time.Minute).
type Config struct {
	// DatabasePath is the SQLite file holding the encrypted vault.
	DatabasePath string

	// RemoteEndpoint is the base URL of the remote document store.
	RemoteEndpoint string

	// Collection is the remote collection clinical notes sync into.
	Collection string

	// SyncInterval is the background sync period.
	SyncInterval time.Duration

	// FirstSyncLookback bounds the download window of the very first sync.
	FirstSyncLookback time.Duration

	// HTTPTimeout applies to every remote request.
	HTTPTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "vault.db"
	c.RemoteEndpoint = "http://127.0.0.1:8080"
	c.Collection = "clinical_notes"
	c.SyncInterval = 5 * time.Minute
	c.FirstSyncLookback = 30 * 24 * time.Hour
	c.HTTPTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment, a JSON file (if present) and command-line flags.
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
