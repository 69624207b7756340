package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names. A .env file in the working directory is
// loaded first; real environment variables win over it.
const (
	envDatabasePath   = "VAULT_DATABASE_PATH"
	envRemoteEndpoint = "VAULT_REMOTE_ENDPOINT"
	envCollection     = "VAULT_COLLECTION"
	envSyncInterval   = "VAULT_SYNC_INTERVAL"
)

// parseEnv overlays Config with values from the environment. A missing .env
// file is not an error.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv(envDatabasePath); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv(envRemoteEndpoint); v != "" {
		cfg.RemoteEndpoint = v
	}
	if v := os.Getenv(envCollection); v != "" {
		cfg.Collection = v
	}
	if v := os.Getenv(envSyncInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
}
