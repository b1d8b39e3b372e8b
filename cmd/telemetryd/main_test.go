package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sofatutor/usage-telemetry/internal/config"
)

func TestServeCommandFlags(t *testing.T) {
	assert.NotNil(t, serveCmd.Flags().Lookup("env"))
	assert.NotNil(t, serveCmd.Flags().Lookup("addr"))
	assert.NotNil(t, serveCmd.Flags().Lookup("key"))
	assert.NotNil(t, serveCmd.Flags().Lookup("destinations"))
	assert.NotNil(t, serveCmd.Flags().Lookup("interval"))
}

func TestApplyFlagOverrides(t *testing.T) {
	origAddr, origKey, origInterval := serveListenAddr, serveKey, serveInterval
	t.Cleanup(func() {
		serveListenAddr, serveKey, serveInterval = origAddr, origKey, origInterval
	})

	serveListenAddr = ":9999"
	serveKey = "G-FLAG"
	serveInterval = 15 * time.Second

	cfg := config.New()
	applyFlagOverrides(cfg)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "G-FLAG", cfg.DestinationKey)
	assert.Equal(t, 15*time.Second, cfg.DispatchInterval)
}

func TestApplyFlagOverrides_EmptyFlagsKeepConfig(t *testing.T) {
	origAddr, origKey := serveListenAddr, serveKey
	t.Cleanup(func() { serveListenAddr, serveKey = origAddr, origKey })
	serveListenAddr, serveKey = "", ""

	cfg := config.New()
	want := cfg.ListenAddr
	applyFlagOverrides(cfg)
	assert.Equal(t, want, cfg.ListenAddr)
}

func TestLoadClients_MissingFileIngestOnly(t *testing.T) {
	cfg := config.New()
	cfg.DestinationKey = ""
	cfg.DestinationsPath = filepath.Join(t.TempDir(), "missing.yaml")

	clients, err := loadClients(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestLoadClients_MissingFileFatalWhenEnabled(t *testing.T) {
	cfg := config.New()
	cfg.DestinationKey = "G-TEST"
	cfg.DestinationsPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := loadClients(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestLoadClients_BuildsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "destinations.yaml")
	data := `clients:
  - type: file
    options:
      filepath: ` + filepath.Join(t.TempDir(), "events.jsonl") + `
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg := config.New()
	cfg.DestinationsPath = path

	clients, err := loadClients(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "file", clients[0].Name())
	for _, c := range clients {
		require.NoError(t, c.Close())
	}
}
