package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJson_NoFlagLeavesConfigUntouched(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"cmd"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "vault.db", cfg.DatabasePath)
}

func TestParseJson_OverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"database_path": "/tmp/json.db",
		"remote_endpoint": "http://json:8081",
		"collection": "json_notes",
		"sync_interval": "2m",
		"first_sync_lookback": "72h",
		"http_timeout": 5000000000
	}`), 0o600))

	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"cmd", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "/tmp/json.db", cfg.DatabasePath)
	assert.Equal(t, "http://json:8081", cfg.RemoteEndpoint)
	assert.Equal(t, "json_notes", cfg.Collection)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 72*time.Hour, cfg.FirstSyncLookback)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
}

func TestParseJson_MissingFilePanics(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"cmd", "-c", filepath.Join(t.TempDir(), "absent.json")}

	cfg := &Config{}
	cfg.LoadDefaults()
	assert.Panics(t, func() { parseJson(cfg) })
}
