package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/headless"
)

const quadOBJ = `o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

func newRenderer(t *testing.T) *renderer.Renderer {
	t.Helper()
	r, err := renderer.New(&core.RendererConfig{
		Backend:          "headless",
		MaxVertexBuffers: 16,
		MaxIndexBuffers:  16,
		MaxTextures:      16,
		StagingPoolSize:  2,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func resultByName(t *testing.T, s *Summary, name string) AssetResult {
	t.Helper()
	for _, r := range s.Assets {
		if r.Name == name {
			return r
		}
	}
	require.Failf(t, "missing result", "no result named %s", name)
	return AssetResult{}
}

func TestBakeSkipsBrokenEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quad.obj", []byte(quadOBJ))
	writeFile(t, dir, "checker.png", encodePNG(t, 4, 2))
	writeFile(t, dir, "broken.png", []byte("not an image"))

	m := &Manifest{
		Root:   dir,
		Output: defaultSummaryFile,
		Meshes: []MeshEntry{
			{Name: "quad", Source: "quad.obj", Tangents: true},
			{Name: "missing", Source: "missing.obj"},
		},
		Textures: []TextureEntry{
			{Name: "checker", Source: "checker.png"},
			{Name: "broken", Source: "broken.png"},
		},
	}
	require.NoError(t, m.Validate())

	r := newRenderer(t)
	summary, err := NewBaker(r, 3, time.Second).Bake(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Baked)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Assets, 4)
	assert.Equal(t, "broken", summary.Assets[0].Name)

	quad := resultByName(t, summary, "quad")
	assert.Empty(t, quad.Error)
	assert.Equal(t, 4, quad.Vertices)
	assert.Equal(t, 6, quad.Indices)
	assert.Equal(t, 2, quad.Triangles)
	assert.True(t, quad.Tangents)
	assert.NotEmpty(t, quad.Guid)
	assert.Positive(t, quad.Bytes)

	checker := resultByName(t, summary, "checker")
	assert.Empty(t, checker.Error)
	assert.Equal(t, uint32(4), checker.Width)
	assert.Equal(t, uint32(2), checker.Height)
	assert.Equal(t, 4*2*4, checker.Bytes)

	assert.NotEmpty(t, resultByName(t, summary, "missing").Error)
	assert.NotEmpty(t, resultByName(t, summary, "broken").Error)

	// Everything the bake uploaded is released again.
	backend := r.Backend().(*headless.Backend)
	vertex, index, textures := backend.Live()
	assert.Zero(t, vertex)
	assert.Zero(t, index)
	assert.Zero(t, textures)
}

func TestBakeGuidsAreStable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quad.obj", []byte(quadOBJ))
	m := &Manifest{Root: dir, Meshes: []MeshEntry{{Name: "quad", Source: "quad.obj"}}}

	r := newRenderer(t)
	first, err := NewBaker(r, 1, time.Second).Bake(context.Background(), m)
	require.NoError(t, err)
	second, err := NewBaker(r, 1, time.Second).Bake(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, first.Assets[0].Guid, second.Assets[0].Guid)
}

func TestBakeRunsTool(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	dir := t.TempDir()
	writeFile(t, dir, "quad.txt", []byte(quadOBJ))
	m := &Manifest{Root: dir, Meshes: []MeshEntry{
		{Name: "converted", Source: "quad.txt", Tool: []string{"cat", "{source}"}},
	}}

	summary, err := NewBaker(newRenderer(t), 1, 5*time.Second).Bake(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Baked)
	assert.Equal(t, 4, summary.Assets[0].Vertices)
}

func TestBakeToolTimeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	dir := t.TempDir()
	m := &Manifest{Root: dir, Meshes: []MeshEntry{
		{Name: "slow", Source: "slow.obj", Tool: []string{"sleep", "5"}},
	}}

	summary, err := NewBaker(newRenderer(t), 1, 50*time.Millisecond).Bake(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Assets[0].Error, "timed out")
}

func TestBakeCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "quad.obj", []byte(quadOBJ))
	m := &Manifest{Root: dir, Meshes: []MeshEntry{{Name: "quad", Source: "quad.obj"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBaker(newRenderer(t), 1, time.Second).Bake(ctx, m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bake.yaml", []byte(`
root: assets
meshes:
  - name: quad
    source: quad.obj
    tangents: true
textures:
  - name: checker
    source: checker.png
    flip_y: true
`))

	m, err := LoadManifest(filepath.Join(dir, "bake.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assets"), m.Root)
	assert.Equal(t, defaultSummaryFile, m.Output)
	require.Len(t, m.Meshes, 1)
	assert.True(t, m.Meshes[0].Tangents)
	assert.True(t, m.Textures[0].FlipY)
	assert.Equal(t, filepath.Join(dir, "assets", "quad.obj"), m.path("quad.obj"))
}

func TestManifestValidate(t *testing.T) {
	cases := map[string]*Manifest{
		"empty":     {},
		"no source": {Meshes: []MeshEntry{{Name: "a"}}},
		"no name":   {Textures: []TextureEntry{{Source: "a.png"}}},
		"duplicate": {
			Meshes:   []MeshEntry{{Name: "a", Source: "a.obj"}},
			Textures: []TextureEntry{{Name: "a", Source: "a.png"}},
		},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			err := m.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidArgument))
		})
	}
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.yaml")
	in := &Summary{Baked: 1, Duration: "1ms", Assets: []AssetResult{{Name: "quad", Kind: "mesh", Vertices: 4}}}
	require.NoError(t, WriteSummary(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out Summary
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, *in, out)
}
