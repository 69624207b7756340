package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/shimishnaByAndy/clinicalvault/internal/flagx"
	"github.com/shimishnaByAndy/clinicalvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "5m"
// or as integer nanoseconds.
type JsonConfig struct {
	DatabasePath      string         `json:"database_path"`
	RemoteEndpoint    string         `json:"remote_endpoint"`
	Collection        string         `json:"collection"`
	SyncInterval      timex.Duration `json:"sync_interval"`
	FirstSyncLookback timex.Duration `json:"first_sync_lookback"`
	HTTPTimeout       timex.Duration `json:"http_timeout"`
}

// parseJson overlays Config with values loaded from the JSON file addressed
// by the -c/-config flags. Without that flag nothing is loaded. Read or
// unmarshal errors panic; the caller may recover if desired.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.RemoteEndpoint != "" {
		cfg.RemoteEndpoint = jc.RemoteEndpoint
	}
	if jc.Collection != "" {
		cfg.Collection = jc.Collection
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.FirstSyncLookback.Duration != 0 {
		cfg.FirstSyncLookback = time.Duration(jc.FirstSyncLookback.Duration)
	}
	if jc.HTTPTimeout.Duration != 0 {
		cfg.HTTPTimeout = time.Duration(jc.HTTPTimeout.Duration)
	}
}
