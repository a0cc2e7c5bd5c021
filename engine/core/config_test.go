package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "headless", cfg.Renderer.Backend)
	assert.Equal(t, 300*time.Second, cfg.Bake.ToolTimeout.Duration())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	data := []byte(`
[log]
level = "debug"

[renderer]
backend = "headless"
max_vertex_buffers = 8

[bake]
workers = 2
tool_timeout = "90s"
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, uint32(8), cfg.Renderer.MaxVertexBuffers)
	assert.Equal(t, uint32(4096), cfg.Renderer.MaxIndexBuffers)
	assert.Equal(t, 2, cfg.Bake.Workers)
	assert.Equal(t, 90*time.Second, cfg.Bake.ToolTimeout.Duration())
	assert.Equal(t, DebugLevel, ParseLogLevel(cfg.Log.Level))
}

func TestConfigValidateRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Renderer.Backend = "metal"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestMetricsAverages(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AvgCount); i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	m.Render.DrawCalls = 4
	m.ResetRenderCounters()
	assert.Zero(t, m.Render.DrawCalls)
}
