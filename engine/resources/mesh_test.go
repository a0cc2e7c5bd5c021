package resources

import (
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/headless"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, cfg *metadata.RendererBackendConfig) (*renderer.Renderer, *headless.Backend) {
	t.Helper()
	b := headless.New()
	require.NoError(t, b.Initialize(cfg))
	r := renderer.NewWithBackend(b, core.NewEventSystem())
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, b
}

func quadMesh(t *testing.T, r *renderer.Renderer, flags MeshFlags) *Mesh {
	t.Helper()
	m, err := NewMesh(r, "", flags)
	require.NoError(t, err)
	require.NoError(t, m.SetVertices([]math.Vec3{
		{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5},
	}))
	require.NoError(t, m.SetUV(0, []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}))
	require.NoError(t, m.SetIndices([]uint32{0, 1, 2, 0, 2, 3}, metadata.TopologyTriangles))
	return m
}

func TestQuadUploadAndDraw(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	var uploaded []core.MeshUploadedEvent
	r.Events().Register(core.EventCodeMeshUploaded, t, func(_, _ interface{}, ctx core.EventContext) bool {
		uploaded = append(uploaded, ctx.Payload.(core.MeshUploadedEvent))
		return false
	})

	m := quadMesh(t, r, DefaultMeshFlags)
	require.NoError(t, m.UploadMeshData())
	assert.False(t, m.Changed())
	require.True(t, m.HasBuffers())

	layout, err := m.GetVertexLayout()
	require.NoError(t, err)
	assert.Equal(t, uint32(20), layout.Stride)
	uv, ok := layout.Element(metadata.VertexAttributeTexCoord0)
	require.True(t, ok)
	assert.Equal(t, uint32(12), uv.Offset)

	want, err := m.MakeVertexDataBlob(layout)
	require.NoError(t, err)
	var got []byte
	require.True(t, b.ReadVertexBuffer(m.VertexBuffer(), func(data []byte, err error) {
		require.NoError(t, err)
		got = data
	}))
	require.NoError(t, b.WaitIdle())
	assert.Equal(t, want, got)

	count, err := m.SubmeshTriangleCount(0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.True(t, m.SetActive(0))
	state := m.ActiveState()
	assert.Equal(t, uint32(6), state.Range.IndexCount)
	assert.Equal(t, metadata.IndexFormatUInt16, state.IndexFormat)

	require.NoError(t, b.BeginCommand())
	require.True(t, b.Render(&metadata.RenderPass{Name: "world"}, &state))
	require.NoError(t, b.SubmitCommand())
	require.Len(t, b.Executed(), 1)
	assert.Equal(t, uint32(2), b.Executed()[0].Primitives)

	require.Len(t, uploaded, 1)
	assert.Equal(t, m.Guid(), uploaded[0].Guid)
	assert.Equal(t, 4*20+6*2, uploaded[0].Bytes)

	// Nothing changed: no second upload.
	require.NoError(t, m.UploadMeshData())
	assert.Len(t, uploaded, 1)
}

func TestUInt16IndexOverflowIsRejected(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	m, err := NewMesh(r, "big", DefaultMeshFlags)
	require.NoError(t, err)
	require.NoError(t, m.SetVertices(make([]math.Vec3, 70000)))
	require.NoError(t, m.SetIndices([]uint32{0, 1, 69999}, metadata.TopologyTriangles))

	err = m.UploadMeshData()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.False(t, m.HasBuffers())

	require.NoError(t, m.SetIndexFormat(metadata.IndexFormatUInt32))
	require.NoError(t, m.UploadMeshData())
}

func TestTriangleIndexCountMustBeMultipleOfThree(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	m := quadMesh(t, r, DefaultMeshFlags)
	require.NoError(t, m.SetIndices([]uint32{0, 1, 2, 3}, metadata.TopologyTriangles))

	err := m.UploadMeshData()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidOperation))
	assert.Contains(t, err.Error(), "got 4")
}

func TestChannelLengthMustMatchVertexCount(t *testing.T) {
	m, err := NewMesh(nil, "", DefaultMeshFlags)
	require.NoError(t, err)
	require.NoError(t, m.SetVertices(make([]math.Vec3, 3)))

	err = m.SetNormals(make([]math.Vec3, 2))
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.False(t, m.Has(ChannelNormal))

	_, err = m.UV(MaxUVSets)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestSetVerticesResetsOnCountChange(t *testing.T) {
	m := quadMesh(t, nil, DefaultMeshFlags)
	require.NoError(t, m.SetNormals(make([]math.Vec3, 4)))

	// Same count keeps everything.
	require.NoError(t, m.SetVertices(make([]math.Vec3, 4)))
	assert.True(t, m.Has(ChannelNormal))
	assert.True(t, m.Has(ChannelTexCoord0))
	assert.Equal(t, 6, m.IndexCount())

	require.NoError(t, m.SetVertices(make([]math.Vec3, 5)))
	assert.False(t, m.Has(ChannelNormal))
	assert.False(t, m.Has(ChannelTexCoord0))
	assert.Equal(t, 0, m.IndexCount())
	assert.Empty(t, m.Submeshes())
}

func TestColourFormsAreExclusive(t *testing.T) {
	m := quadMesh(t, nil, DefaultMeshFlags)
	require.NoError(t, m.SetColors32(1, make([]Color32, 4)))
	assert.True(t, m.Has(ColorChannel(1)))

	err := m.SetColors(1, make([]math.Vec4, 4))
	assert.True(t, errors.Is(err, core.ErrInvalidOperation))

	require.NoError(t, m.ClearChannel(ColorChannel(1)))
	require.NoError(t, m.SetColors(1, make([]math.Vec4, 4)))
}

func TestLayoutsAreSharedPerChannelSet(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	a := quadMesh(t, r, DefaultMeshFlags)
	b := quadMesh(t, r, DefaultMeshFlags)

	la, err := a.GetVertexLayout()
	require.NoError(t, err)
	lb, err := b.GetVertexLayout()
	require.NoError(t, err)
	assert.Same(t, la, lb)
	assert.Equal(t, a.ChannelSignature(), b.ChannelSignature())

	require.NoError(t, b.SetNormals(make([]math.Vec3, 4)))
	lc, err := b.GetVertexLayout()
	require.NoError(t, err)
	assert.NotSame(t, la, lc)
	assert.Equal(t, uint32(32), lc.Stride)
}

func TestVertexBlobPacksEveryVertex(t *testing.T) {
	m := quadMesh(t, nil, DefaultMeshFlags)
	require.NoError(t, m.SetColors32(0, []Color32{{R: 255, A: 255}, {}, {}, {}}))

	layout, err := m.GetVertexLayout()
	require.NoError(t, err)
	blob, err := m.MakeVertexDataBlob(layout)
	require.NoError(t, err)
	assert.Len(t, blob, int(layout.Stride)*4)

	c, ok := layout.Element(metadata.VertexAttributeColor0)
	require.True(t, ok)
	assert.Equal(t, float32(1), getFloat(blob[c.Offset:]))
	assert.Equal(t, float32(0), getFloat(blob[c.Offset+4:]))
}

func TestMeshDataBlobReplacesChannels(t *testing.T) {
	type vertex struct {
		Position math.Vec3
		UV       math.Vec2
	}
	m := quadMesh(t, nil, DefaultMeshFlags)
	layout, err := m.GetVertexLayout()
	require.NoError(t, err)

	data := []vertex{
		{Position: math.NewVec3(0, 0, 0)},
		{Position: math.NewVec3(2, 0, 0)},
		{Position: math.NewVec3(2, 3, 0)},
		{Position: math.NewVec3(0, 3, 0)},
	}
	require.NoError(t, SetMeshDataSlice(m, data, layout))
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, 6, m.IndexCount())
	assert.True(t, m.Has(ChannelTexCoord0))

	_, err = m.Vertices()
	assert.True(t, errors.Is(err, core.ErrInvalidOperation))

	bounds := m.UpdateBounds()
	assert.True(t, bounds.Max.Compare(math.NewVec3(2, 3, 0), 1e-6))

	err = m.SetMeshData(make([]byte, 21), layout)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestSingleTriangleNormal(t *testing.T) {
	normals, err := GenerateNormals(
		[]math.Vec3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
		[]uint32{0, 1, 2},
		false,
	)
	require.NoError(t, err)
	for _, n := range normals {
		assert.True(t, n.Compare(math.NewVec3(0, 0, 1), 1e-6), "got %+v", n)
	}
}

func TestSmoothNormalsMergeSharedPositions(t *testing.T) {
	g := GenerateCube(1, 1, 1, 1, 1)
	flat, err := GenerateNormals(g.Positions, g.Indices, false)
	require.NoError(t, err)
	smooth, err := GenerateNormals(g.Positions, g.Indices, true)
	require.NoError(t, err)

	assert.True(t, flat[0].Compare(g.Normals[0], 1e-5))
	shared := 0
	for i, p := range g.Positions {
		if p == g.Positions[0] {
			shared++
			assert.True(t, smooth[i].Compare(smooth[0], 1e-6))
		}
	}
	assert.Equal(t, 3, shared)
	assert.Less(t, smooth[0].X, float32(0))
	assert.Less(t, smooth[0].Y, float32(0))
	assert.Greater(t, smooth[0].Z, float32(0))
}

func TestTangentsFollowUVs(t *testing.T) {
	g := GenerateQuad(1, 1)
	tangents, bitangents, err := GenerateTangents(g.Positions, g.Normals, g.UVs, g.Indices)
	require.NoError(t, err)
	for i := range tangents {
		assert.True(t, tangents[i].Compare(math.NewVec3(1, 0, 0), 1e-5))
		assert.True(t, bitangents[i].Compare(math.NewVec3(0, 1, 0), 1e-5))
	}
}

func TestGeneratorsRejectInconsistentInput(t *testing.T) {
	tri := []math.Vec3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	uvs := []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	normals := []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}}

	_, err := GenerateNormals(tri, []uint32{0, 1, 5}, false)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "out of range index: %v", err)

	_, err = GenerateNormals(append(tri, math.Vec3{X: 1, Y: 1}), []uint32{0, 1, 2, 3}, false)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "partial triangle: %v", err)

	_, _, err = GenerateTangents(tri, normals[:1], uvs, []uint32{0, 1, 2})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "short normals: %v", err)

	_, _, err = GenerateTangents(tri, normals, uvs[:2], []uint32{0, 1, 2})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "short uvs: %v", err)

	_, _, err = GenerateTangents(tri, normals, uvs, []uint32{0, 1, 3})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "out of range index: %v", err)

	_, _, err = GenerateTangents(tri, normals, uvs, []uint32{0, 1})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument), "partial triangle: %v", err)
}

func TestRecalculateNeedsWholeTriangles(t *testing.T) {
	m := quadMesh(t, nil, DefaultMeshFlags)
	require.NoError(t, m.SetIndices([]uint32{0, 1, 2, 3}, metadata.TopologyTriangles))

	err := m.RecalculateNormals(true)
	assert.True(t, errors.Is(err, core.ErrInvalidOperation), "got %v", err)
	assert.Contains(t, err.Error(), "got 4")
	err = m.RecalculateTangents()
	assert.True(t, errors.Is(err, core.ErrInvalidOperation), "got %v", err)
}

func TestGeneratedGeometryFacesOutward(t *testing.T) {
	for name, g := range map[string]GeometryData{
		"cube":   GenerateCube(2, 2, 2, 1, 1),
		"sphere": GenerateSphere(1, 8, 12),
	} {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			p0, p1, p2 := g.Positions[g.Indices[i]], g.Positions[g.Indices[i+1]], g.Positions[g.Indices[i+2]]
			face := p1.Sub(p0).Cross(p2.Sub(p0))
			centroid := p0.Add(p1).Add(p2).MulScalar(1.0 / 3)
			assert.GreaterOrEqual(t, face.Dot(centroid), float32(-1e-5), "%s triangle %d", name, i/3)
		}
	}

	plane := GeneratePlane(2, 2, 2, 2, 1, 1)
	assert.Len(t, plane.Positions, 16)
	assert.Len(t, plane.Indices, 24)
	n, err := GenerateNormals(plane.Positions, plane.Indices, false)
	require.NoError(t, err)
	assert.True(t, n[0].Compare(math.NewVec3(0, 0, 1), 1e-6))
}

func TestAddSubmeshOutOfRangeIsIgnored(t *testing.T) {
	m := quadMesh(t, nil, DefaultMeshFlags)
	assert.False(t, m.AddSubmesh(Submesh{StartIndex: 3, IndexCount: 6, VertexCount: 4}))
	assert.Empty(t, m.Submeshes())

	assert.True(t, m.AddSubmesh(Submesh{StartIndex: 3, IndexCount: 3, VertexCount: 4}))
	count, err := m.SubmeshTriangleCount(0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = m.SubmeshTriangleCount(1)
	assert.Error(t, err)
}

func TestUploadRollsBackOnIndexFailure(t *testing.T) {
	r, b := newTestRenderer(t, &metadata.RendererBackendConfig{MaxIndexBuffers: 1})
	blocker := b.CreateIndexBuffer([]byte{0, 0}, metadata.IndexFormatUInt16, metadata.ResourceFlagNone)
	require.True(t, blocker.Valid)

	m := quadMesh(t, r, DefaultMeshFlags)
	err := m.UploadMeshData()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUploadFailed))
	assert.False(t, m.VertexBuffer().Valid)
	assert.False(t, m.IndexBuffer().Valid)
	assert.True(t, m.Changed())

	vertex, index, _ := b.Live()
	assert.Equal(t, uint32(0), vertex)
	assert.Equal(t, uint32(1), index)

	b.DestroyIndexBuffer(blocker)
	require.NoError(t, m.UploadMeshData())
	assert.True(t, m.HasBuffers())
}

func TestDynamicMeshUpdatesInPlace(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	m := quadMesh(t, r, DefaultMeshFlags|MeshDynamic)
	require.NoError(t, m.UploadMeshData())
	vb := m.VertexBuffer()

	require.NoError(t, m.SetVertices(make([]math.Vec3, 4)))
	require.NoError(t, m.UploadMeshData())
	assert.Equal(t, vb, m.VertexBuffer())

	var got []byte
	require.True(t, b.ReadVertexBuffer(vb, func(data []byte, err error) { got = data }))
	require.NoError(t, b.WaitIdle())
	assert.Equal(t, float32(0), getFloat(got))

	// Dynamic meshes keep their buffers across Clear.
	require.NoError(t, m.Clear())
	assert.True(t, m.HasBuffers())
	m.Destroy()
	vertex, index, _ := b.Live()
	assert.Zero(t, vertex)
	assert.Zero(t, index)
}

func TestDynamicMeshUploadsOnlyChangedBytes(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	m := quadMesh(t, r, DefaultMeshFlags|MeshDynamic)
	require.NoError(t, m.UploadMeshData())
	before := b.Stats()

	positions, err := m.Vertices()
	require.NoError(t, err)
	positions[2] = math.NewVec3(0.25, 0.75, 1)
	require.NoError(t, m.SetVertices(positions))
	require.NoError(t, m.UploadMeshData())

	after := b.Stats()
	assert.Equal(t, uint64(12), after.BytesUploaded-before.BytesUploaded, "one position")
	assert.Equal(t, uint64(1), after.Copies-before.Copies, "indices are unchanged")

	layout, err := m.GetVertexLayout()
	require.NoError(t, err)
	want, err := m.MakeVertexDataBlob(layout)
	require.NoError(t, err)
	var got []byte
	require.True(t, b.ReadVertexBuffer(m.VertexBuffer(), func(data []byte, err error) { got = data }))
	require.NoError(t, b.WaitIdle())
	assert.Equal(t, want, got)

	// Nothing differs, nothing is copied.
	require.NoError(t, m.SetVertices(positions))
	require.NoError(t, m.UploadMeshData())
	assert.Equal(t, after.BytesUploaded, b.Stats().BytesUploaded)
}

func TestDynamicMeshRecreatesIndexBufferOnFormatChange(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	m, err := NewMesh(r, "", DefaultMeshFlags|MeshDynamic)
	require.NoError(t, err)
	require.NoError(t, m.SetVertices(make([]math.Vec3, 4)))
	require.NoError(t, m.SetIndexFormat(metadata.IndexFormatUInt32))
	require.NoError(t, m.SetIndices([]uint32{0, 1, 2, 0, 2, 3}, metadata.TopologyTriangles))
	require.NoError(t, m.UploadMeshData())

	// 12 uint16 indices occupy the same 24 bytes as 6 uint32 ones.
	require.NoError(t, m.SetIndexFormat(metadata.IndexFormatUInt16))
	require.NoError(t, m.SetIndices([]uint32{0, 1, 2, 0, 2, 3, 0, 1, 2, 0, 2, 3}, metadata.TopologyTriangles))
	require.NoError(t, m.UploadMeshData())
	_, index, _ := b.Live()
	assert.Equal(t, uint32(1), index)

	// The draw only validates against a buffer created for uint16 indices.
	require.True(t, m.SetActive(0))
	state := m.ActiveState()
	assert.Equal(t, metadata.IndexFormatUInt16, state.IndexFormat)
	require.NoError(t, b.BeginCommand())
	assert.True(t, b.Render(nil, &state))
	require.NoError(t, b.SubmitCommand())
	require.Len(t, b.Executed(), 1)
	assert.Equal(t, uint32(4), b.Executed()[0].Primitives)
}

func TestSetActiveWithoutSubmeshes(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	m := quadMesh(t, r, DefaultMeshFlags)
	assert.False(t, m.SetActive(1))
	assert.True(t, m.SetActive(0))

	cpuOnly := quadMesh(t, nil, DefaultMeshFlags)
	assert.False(t, cpuOnly.SetActive(0))
	assert.True(t, errors.Is(cpuOnly.UploadMeshData(), core.ErrBackendNotInitialized))
}

func TestIndicesAreEncodedLittleEndian(t *testing.T) {
	m := quadMesh(t, nil, DefaultMeshFlags)
	require.NoError(t, m.SetIndexFormat(metadata.IndexFormatUInt32))
	data, err := m.encodeIndices()
	require.NoError(t, err)
	require.Len(t, data, 24)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[20:]))
}

func TestBuiltinMeshes(t *testing.T) {
	_, err := NewMesh(nil, BuiltinCube, DefaultMeshFlags)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	cube, err := NewBuiltinMesh(nil, "Cube")
	require.NoError(t, err)
	assert.True(t, cube.IsBuiltin())
	assert.Equal(t, 24, cube.VertexCount())
	assert.True(t, cube.Bounds().Min.Compare(math.NewVec3(-0.5, -0.5, -0.5), 1e-6))
	assert.True(t, errors.Is(cube.SetVertices(nil), core.ErrInvalidOperation))

	clone, err := cube.Clone("")
	require.NoError(t, err)
	assert.False(t, clone.IsBuiltin())
	assert.True(t, clone.IsWritable())
	require.NoError(t, clone.RecalculateNormals(false))

	_, err = NewBuiltinMesh(nil, "Teapot")
	assert.Error(t, err)
}

func TestDeduplicateVertices(t *testing.T) {
	m, err := NewMesh(nil, "", DefaultMeshFlags)
	require.NoError(t, err)
	require.NoError(t, m.SetGeometry(GeneratePlane(2, 2, 2, 2, 1, 1)))

	removed, err := m.DeduplicateVertices()
	require.NoError(t, err)
	assert.Equal(t, 7, removed)
	assert.Equal(t, 9, m.VertexCount())
	assert.Equal(t, 24, m.IndexCount())

	require.True(t, m.AddSubmesh(Submesh{IndexCount: 6, VertexCount: 9}))
	_, err = m.DeduplicateVertices()
	assert.True(t, errors.Is(err, core.ErrInvalidOperation))
}

func TestRecalculateTangents(t *testing.T) {
	m, err := NewMesh(nil, "", DefaultMeshFlags)
	require.NoError(t, err)
	require.NoError(t, m.SetGeometry(GenerateQuad(1, 1)))
	require.NoError(t, m.RecalculateTangents())
	assert.True(t, m.Has(ChannelTangent))
	assert.True(t, m.Has(ChannelBitangent))

	require.NoError(t, m.ClearChannel(ChannelNormal))
	assert.True(t, errors.Is(m.RecalculateTangents(), core.ErrInvalidOperation))
}

func TestAccessFlagsAreEnforced(t *testing.T) {
	writeOnly, err := NewMesh(nil, "write-only", MeshWritable)
	require.NoError(t, err)
	require.NoError(t, writeOnly.SetVertices([]math.Vec3{{}, {X: 1}, {Y: 1}}))
	_, err = writeOnly.Vertices()
	assert.True(t, errors.Is(err, core.ErrInvalidOperation))

	readOnly, err := NewMesh(nil, "read-only", MeshReadable)
	require.NoError(t, err)
	err = readOnly.SetVertices([]math.Vec3{{}})
	assert.True(t, errors.Is(err, core.ErrInvalidOperation))

	sealed := quadMesh(t, nil, DefaultMeshFlags)
	sealed.SetReadOnly()
	assert.False(t, sealed.IsWritable())
	assert.True(t, errors.Is(sealed.SetIndices([]uint32{0, 1, 2}, metadata.TopologyTriangles), core.ErrInvalidOperation))
	vertices, err := sealed.Vertices()
	require.NoError(t, err)
	assert.Len(t, vertices, 4)
}

func TestBuiltinPrefixIsReserved(t *testing.T) {
	_, err := NewMesh(nil, BuiltinPrefix+"Cube", DefaultMeshFlags)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	m, err := NewMesh(nil, "", DefaultMeshFlags)
	require.NoError(t, err)
	assert.NotEmpty(t, m.Guid())
	assert.False(t, m.IsBuiltin())
	assert.False(t, m.IsDynamic())
	m.MarkDynamic()
	assert.True(t, m.IsDynamic())
}
