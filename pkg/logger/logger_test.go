package logger

import (
	"os"
	"path/filepath"
	"sage_edu_backend/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLevelFallsBackToServerMode(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Mode: "debug"}}
	assert.Equal(t, zap.DebugLevel, Level(cfg))

	cfg.Server.Mode = "release"
	assert.Equal(t, zap.InfoLevel, Level(cfg))

	cfg.Log.Level = "warn"
	assert.Equal(t, zap.WarnLevel, Level(cfg))

	cfg.Log.Level = "loud"
	assert.Equal(t, zap.InfoLevel, Level(cfg))
}

func TestNewWritesJSONFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "release"},
		Log:    config.LogConfig{File: file, MaxSizeMB: 1},
	}

	log := New(cfg)
	log.Debug("hidden")
	log.Info("Module moved", zap.String("module_id", "m-1"))
	_ = log.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Module moved"`)
	assert.Contains(t, string(data), `"module_id":"m-1"`)
	assert.NotContains(t, string(data), "hidden")
}
