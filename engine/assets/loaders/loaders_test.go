package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	buf := encodePNG(t)

	img, err := DecodeImage(buf, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, img.Pixels)

	flipped, err := DecodeImage(buf, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255, 255, 0, 0, 255}, flipped.Pixels)
}

func TestDecodeImageRejectsOtherFiles(t *testing.T) {
	_, err := DecodeImage([]byte("definitely not pixels"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnsupported))
}

func TestTextureLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t), 0o644))

	tl := &TextureLoader{}
	res, err := tl.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, resources.ResourceTypeImage, res.Type)
	assert.Equal(t, uint64(8), res.DataSize)
	require.NoError(t, tl.Unload(res))
	assert.Nil(t, res.Data)
}

func TestParseMaterial(t *testing.T) {
	src := `
# brick wall
name = wall
guid = mat-wall
diffuse_colour = 1 0.5 0.25 1
diffuse_map_name = wall_diffuse
lighting = unlit
blend = alpha
cull = none
depth = test
bogus = ignored
`
	cfg, err := ParseMaterial(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "wall", cfg.Material.Name)
	assert.Equal(t, "mat-wall", cfg.Material.Guid)
	assert.Equal(t, float32(0.5), cfg.Material.DiffuseColour.Y)
	assert.Equal(t, "wall_diffuse", cfg.DiffuseMapName)
	assert.Equal(t, metadata.LightingModeUnlit, cfg.Material.Lighting)
	assert.Equal(t, metadata.BlendModeAlpha, cfg.Material.Blend)
	assert.Equal(t, metadata.FaceCullModeNone, cfg.Material.Cull)
	assert.Equal(t, metadata.DepthModeTest, cfg.Material.Depth)
}

func TestParseMaterialErrors(t *testing.T) {
	cases := map[string]string{
		"missing name":   "lighting = lit\n",
		"bad colour":     "name = a\ndiffuse_colour = 1 1 1\n",
		"colour range":   "name = a\ndiffuse_colour = 2 1 1 1\n",
		"unknown option": "name = a\nblend = glow\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMaterial(strings.NewReader(src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidArgument))
		})
	}

	cfg, err := ParseMaterial(strings.NewReader("name = generated\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Material.Guid)
}

const quadOBJ = `o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl quadmat
f 1/1 2/2 3/3 4/4
`

func TestDecodeOBJ(t *testing.T) {
	model, err := DecodeOBJ(strings.NewReader(quadOBJ), strings.NewReader(""), "quad", ModelParams{
		Flags: resources.DefaultMeshFlags,
		FlipV: true,
	})
	require.NoError(t, err)
	m := model.Mesh
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, 6, m.IndexCount())
	assert.Len(t, model.Materials, 1)
	assert.Empty(t, m.Submeshes())

	indices, err := m.Indices()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, indices)

	uvs, err := m.UV(0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), uvs[0].Y)
	assert.Equal(t, float32(0), uvs[2].Y)

	normals, err := m.Normals()
	require.NoError(t, err)
	for _, n := range normals {
		assert.InDelta(t, 1, n.Z, 1e-5)
	}
	assert.Equal(t, float32(1), m.Bounds().Max.X)
}

func TestModelLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))

	ml := &ModelLoader{}
	res, err := ml.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, resources.ResourceTypeMesh, res.Type)
	assert.Equal(t, "quad", res.Name)
	model := res.Data.(*resources.ModelData)
	assert.Equal(t, "quad", model.Mesh.Guid())
	require.NoError(t, ml.Unload(res))
}

func TestBinaryAndTextLoaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	res, err := (&BinaryLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, res.Data)

	res, err = (&TextLoader{}).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "\x01\x02\x03", res.Data)

	_, err = (&TextLoader{}).Load(filepath.Join(dir, "missing.txt"), nil)
	assert.Error(t, err)
}
