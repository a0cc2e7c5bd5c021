package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "lumen.toml")
	content := fmt.Sprintf("[renderer]\nbackend = \"headless\"\n\n[assets]\nroot = %q\n", dir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestGame(t *testing.T, maxFrames uint64) *Game {
	return &Game{
		ApplicationConfig: &ApplicationConfig{
			Name:       "engine test",
			ConfigPath: writeConfig(t),
			LogLevel:   "error",
			MaxFrames:  maxFrames,
		},
	}
}

func TestEngineRunsUntilFrameLimit(t *testing.T) {
	g := newTestGame(t, 3)
	var updates, renders int
	g.FnUpdate = func(float64) error { updates++; return nil }
	g.FnRender = func(float64) error { renders++; return nil }

	e, err := New(g)
	require.NoError(t, err)
	assert.Equal(t, EngineStageBootComplete, e.Stage())
	assert.Equal(t, "engine test", e.Config().Renderer.AppName)

	require.NoError(t, e.Initialize())
	require.NotNil(t, g.SystemManager)
	require.NoError(t, e.Run())

	assert.Equal(t, 3, updates)
	assert.Equal(t, 3, renders)
	assert.Equal(t, uint64(3), g.SystemManager.RendererSystem.FrameNumber)
	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageUninitialized, e.Stage())
}

func TestEngineQuitStopsLoop(t *testing.T) {
	g := newTestGame(t, 100)
	var e *Engine
	updates := 0
	g.FnUpdate = func(float64) error {
		updates++
		if updates == 2 {
			e.Quit()
		}
		return nil
	}

	var err error
	e, err = New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run())
	assert.Equal(t, 2, updates)
	require.NoError(t, e.Shutdown())
}

func TestEngineUpdateErrorEndsRun(t *testing.T) {
	g := newTestGame(t, 0)
	boom := errors.New("boom")
	g.FnUpdate = func(float64) error { return boom }

	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	err = e.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	require.NoError(t, e.Shutdown())
}

func TestEngineStageOrder(t *testing.T) {
	e, err := New(newTestGame(t, 1))
	require.NoError(t, err)
	assert.Error(t, e.Run())
	require.NoError(t, e.Initialize())
	assert.Error(t, e.Initialize())
	require.NoError(t, e.Shutdown())
}

func TestEngineRejectsMissingConfig(t *testing.T) {
	_, err := New(&Game{})
	assert.Error(t, err)
}
