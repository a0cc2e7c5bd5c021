package systems

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func writeFile(t *testing.T, root, name string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func pngBytes(t *testing.T, w, h int, alpha uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: alpha})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestAssets(t *testing.T) (*assets.AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "textures/brick.png", pngBytes(t, 4, 2, 255))
	writeFile(t, root, "textures/glass.png", pngBytes(t, 2, 2, 128))
	writeFile(t, root, "materials/brick.kmt", []byte("name = brick\ndiffuse_map_name = brick\nlighting = lit\n"))
	writeFile(t, root, "models/tri.obj", []byte("o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl brick\nf 1 2 3\n"))
	am := assets.NewAssetManager(core.AssetsConfig{Root: root}, nil)
	require.NoError(t, am.Initialize())
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, root
}

func TestTextureSystemAcquireRelease(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	am, _ := newTestAssets(t)
	ts, err := NewTextureSystem(TextureSystemConfig{MaxTextureCount: 2}, r, am, nil)
	require.NoError(t, err)
	require.NoError(t, ts.Initialize())
	assert.True(t, ts.Default().Handle.Valid)
	assert.Equal(t, uint32(256), ts.Default().Width)

	brick, err := ts.Acquire("brick", true)
	require.NoError(t, err)
	assert.True(t, brick.Handle.Valid)
	assert.Equal(t, uint32(4), brick.Width)
	assert.False(t, brick.HasAlpha)

	again, err := ts.Acquire("brick", true)
	require.NoError(t, err)
	assert.Same(t, brick, again)

	glass, err := ts.Acquire("textures/glass.png", false)
	require.NoError(t, err)
	assert.True(t, glass.HasAlpha)

	_, err = ts.Acquire("missing", true)
	assert.True(t, errors.Is(err, core.ErrResourceExhausted))

	_, _, live := b.Live()
	assert.Equal(t, uint32(3), live)

	ts.Release("brick")
	assert.True(t, brick.Handle.Valid)
	ts.Release("brick")
	assert.False(t, brick.Handle.Valid)
	assert.Equal(t, 1, ts.Len())

	_, err = ts.Acquire("missing", true)
	assert.True(t, errors.Is(err, assets.ErrAssetNotFound))

	require.NoError(t, ts.Shutdown())
	_, _, live = b.Live()
	assert.Equal(t, uint32(0), live)
}

func TestTextureSystemAsyncUpload(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	am, _ := newTestAssets(t)
	js, err := NewJobSystem(2, 8)
	require.NoError(t, err)
	defer js.Shutdown()

	ts, err := NewTextureSystem(TextureSystemConfig{MaxTextureCount: 8}, r, am, js)
	require.NoError(t, err)
	require.NoError(t, ts.Initialize())

	tex, err := ts.AcquireAsync("brick", true)
	require.NoError(t, err)
	assert.False(t, tex.Handle.Valid)

	require.NoError(t, js.Wait())
	assert.Equal(t, 1, ts.Update())
	assert.True(t, tex.Handle.Valid)
	assert.Equal(t, uint32(1), tex.Generation)

	require.NoError(t, ts.Reload("brick"))
	assert.Equal(t, uint32(2), tex.Generation)
}

func TestCheckerboardImage(t *testing.T) {
	img := CheckerboardImage(4, 2)
	assert.Len(t, img.Pixels, 64)
	// First tile is white, the next one blue.
	assert.Equal(t, []byte{255, 255, 255, 255}, img.Pixels[0:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, img.Pixels[8:12])
}

func TestSystemManagerLoadsMaterialsAndModels(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	am, _ := newTestAssets(t)
	sm, err := NewSystemManager(r, core.NewMetrics(), am, nil)
	require.NoError(t, err)

	mat, err := sm.LoadMaterial("materials/brick.kmt")
	require.NoError(t, err)
	assert.True(t, mat.DiffuseTexture.Valid)
	assert.NotEqual(t, sm.TextureSystem.Default().Handle, mat.DiffuseTexture)
	byName, ok := sm.MaterialSystem.GetByName("brick")
	require.True(t, ok)
	assert.Same(t, mat, byName)

	mr, err := sm.LoadModel("models/tri.obj", math.TransformCreate())
	require.NoError(t, err)
	require.Len(t, mr.Materials, 1)

	sm.Update()
	require.NoError(t, sm.DrawFrame())
	assert.Len(t, b.Executed(), 1)
	assert.Equal(t, metadata.LightingModeLit, mr.Materials[0].Lighting)

	require.NoError(t, sm.Shutdown())
}

func TestSystemManagerWithoutAssets(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	sm, err := NewSystemManager(r, nil, nil, nil)
	require.NoError(t, err)
	defer sm.Shutdown()

	_, err = sm.LoadMaterial("x.kmt")
	assert.True(t, errors.Is(err, core.ErrInvalidOperation))
	assert.True(t, sm.MaterialSystem.Default().DiffuseTexture.Valid)
}
