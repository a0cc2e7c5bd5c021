package systems

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/headless"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
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

func builtin(t *testing.T, r *renderer.Renderer, name string) *resources.Mesh {
	t.Helper()
	m, err := resources.NewBuiltinMesh(r, name)
	require.NoError(t, err)
	return m
}

func material(name string, lighting metadata.LightingMode) *metadata.Material {
	return &metadata.Material{
		Guid:          metadata.GenerateGuid(),
		Name:          name,
		Lighting:      lighting,
		DiffuseColour: math.NewVec4One(),
	}
}

func TestMeshRenderSystemInstancesGroups(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	rs, err := NewRendererSystem(r, core.NewMetrics())
	require.NoError(t, err)

	cube := builtin(t, r, "Cube")
	quad := builtin(t, r, "Quad")
	lit := material("lit", metadata.LightingModeLit)
	unlit := material("unlit", metadata.LightingModeUnlit)

	scene := NewScene()
	for i := 0; i < 3; i++ {
		scene.AddRenderer(NewMeshRenderer(cube, math.TransformFromPosition(math.NewVec3(float32(i), 0, 0)), lit))
	}
	scene.AddRenderer(NewMeshRenderer(quad, nil, lit))
	scene.AddRenderer(NewMeshRenderer(quad, nil, unlit))

	require.NoError(t, rs.DrawFrame(scene))

	counters := rs.MeshRenderSystem().Metrics().Render
	assert.Equal(t, uint32(3), counters.DrawCalls)
	assert.Equal(t, uint32(1), counters.InstancedDraws)
	assert.Equal(t, uint32(3), counters.Instances)
	assert.Equal(t, uint64(12*3+2+2), counters.Triangles)
	assert.Equal(t, 3, rs.MeshRenderSystem().Groups())

	executed := b.Executed()
	require.Len(t, executed, 3)
	instanced := 0
	for _, d := range executed {
		assert.Equal(t, WorldRenderPassName, d.Pass)
		if d.Instances == 3 {
			instanced++
			assert.True(t, d.State.InstanceBuffer.Valid)
		}
	}
	assert.Equal(t, 1, instanced)
	assert.Equal(t, uint64(1), b.Stats().Discards)

	// A second frame reuses the instance buffer.
	vertexBefore, _, _ := b.Live()
	require.NoError(t, rs.DrawFrame(scene))
	vertexAfter, _, _ := b.Live()
	assert.Equal(t, vertexBefore, vertexAfter)
	assert.Equal(t, uint32(3), rs.MeshRenderSystem().Metrics().Render.DrawCalls)
}

func TestMeshRenderSystemUpdatesOnlyChangedInstances(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	rs, err := NewRendererSystem(r, nil)
	require.NoError(t, err)

	cube := builtin(t, r, "Cube")
	mat := material("lit", metadata.LightingModeLit)
	scene := NewScene()
	var transforms []*math.Transform
	for i := 0; i < 3; i++ {
		tr := math.TransformFromPosition(math.NewVec3(float32(i), 0, 0))
		transforms = append(transforms, tr)
		scene.AddRenderer(NewMeshRenderer(cube, tr, mat))
	}
	require.NoError(t, rs.DrawFrame(scene))
	uploaded := b.Stats().BytesUploaded

	require.NoError(t, rs.DrawFrame(scene))
	assert.Equal(t, uploaded, b.Stats().BytesUploaded, "nothing moved")

	// Only the x translation of the second matrix changes.
	transforms[1].SetPosition(math.NewVec3(5, 0, 0))
	require.NoError(t, rs.DrawFrame(scene))
	assert.Equal(t, uploaded+4, b.Stats().BytesUploaded)
	require.Len(t, b.Executed(), 1)
	assert.Equal(t, uint32(3), b.Executed()[0].Instances)
}

func TestMeshRenderSystemSkipsMissingMaterials(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	rs, err := NewRendererSystem(r, nil)
	require.NoError(t, err)

	scene := NewScene()
	scene.AddRenderer(NewMeshRenderer(builtin(t, r, "Quad"), nil))
	require.NoError(t, rs.DrawFrame(scene))

	counters := rs.MeshRenderSystem().Metrics().Render
	assert.Equal(t, uint32(1), counters.SkippedEntities)
	assert.Zero(t, counters.DrawCalls)
	assert.Empty(t, b.Executed())
}

func TestMeshRenderSystemDiscardsGroupWhenInstanceBufferFails(t *testing.T) {
	r, b := newTestRenderer(t, &metadata.RendererBackendConfig{MaxVertexBuffers: 1})
	rs, err := NewRendererSystem(r, nil)
	require.NoError(t, err)

	cube := builtin(t, r, "Cube")
	mat := material("lit", metadata.LightingModeLit)
	scene := NewScene()
	scene.AddRenderer(NewMeshRenderer(cube, nil, mat))
	scene.AddRenderer(NewMeshRenderer(cube, math.TransformFromPosition(math.NewVec3(0, 2, 0)), mat))
	require.NoError(t, rs.DrawFrame(scene))

	counters := rs.MeshRenderSystem().Metrics().Render
	assert.Equal(t, uint32(1), counters.DiscardedGroups)
	assert.Zero(t, counters.DrawCalls)
	assert.Empty(t, b.Executed())
	assert.Equal(t, uint64(1), b.Stats().Discards)
}

func TestMeshRenderSystemCulls(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	rs, err := NewRendererSystem(r, nil)
	require.NoError(t, err)
	rs.MeshRenderSystem().Cull = func(bounds math.Extents3D) bool {
		return bounds.Min.X < 5
	}

	cube := builtin(t, r, "Cube")
	mat := material("lit", metadata.LightingModeLit)
	near := NewMeshRenderer(cube, nil, mat)
	far := NewMeshRenderer(cube, math.TransformFromPosition(math.NewVec3(10, 0, 0)), mat)
	scene := NewScene()
	scene.AddRenderer(near)
	scene.AddRenderer(far)
	require.NoError(t, rs.DrawFrame(scene))

	assert.True(t, near.Visible())
	assert.False(t, far.Visible())
	assert.True(t, far.WorldBounds().Min.Compare(math.NewVec3(9.5, -0.5, -0.5), 1e-5))
	require.Len(t, b.Executed(), 1)
	assert.Equal(t, uint32(1), b.Executed()[0].Instances)
}

func TestRendererSystemCamera(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	rs, err := NewRendererSystem(r, nil)
	require.NoError(t, err)
	rs.Camera = components.NewCamera(1)
	rs.Camera.SetPosition(math.NewVec3(0, 0, 10))

	cube := builtin(t, r, "Cube")
	mat := material("lit", metadata.LightingModeLit)
	front := NewMeshRenderer(cube, math.TransformFromPosition(math.NewVec3(1, 0, 0)), mat)
	behind := NewMeshRenderer(cube, math.TransformFromPosition(math.NewVec3(0, 0, 30)), mat)
	scene := NewScene()
	scene.AddRenderer(front)
	scene.AddRenderer(behind)
	require.NoError(t, rs.DrawFrame(scene))

	assert.True(t, front.Visible())
	assert.False(t, behind.Visible())
	require.Len(t, b.Executed(), 1)
	want := front.Transform.GetWorld().Mul(rs.Camera.ViewProjection())
	assert.True(t, b.Executed()[0].State.World.Compare(want, 1e-5))
}

func TestRendererSystemFailedSubmitKeepsUploads(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	rs, err := NewRendererSystem(r, nil)
	require.NoError(t, err)

	m, err := resources.NewMesh(r, "", resources.DefaultMeshFlags)
	require.NoError(t, err)
	require.NoError(t, m.SetGeometry(resources.GenerateQuad(1, 1)))
	scene := NewScene()
	scene.AddRenderer(NewMeshRenderer(m, nil, material("lit", metadata.LightingModeLit)))

	b.FailNextSubmit(errors.New("device lost"))
	require.Error(t, rs.DrawFrame(scene))
	assert.Equal(t, uint64(1), b.Stats().Cancels)
	assert.Empty(t, b.Executed())
	require.True(t, m.HasBuffers())
	assert.False(t, m.Changed())

	layout, err := m.GetVertexLayout()
	require.NoError(t, err)
	want, err := m.MakeVertexDataBlob(layout)
	require.NoError(t, err)
	var got []byte
	require.True(t, b.ReadVertexBuffer(m.VertexBuffer(), func(data []byte, err error) {
		require.NoError(t, err)
		got = data
	}))
	require.NoError(t, b.WaitIdle())
	assert.Equal(t, want, got)

	require.NoError(t, rs.DrawFrame(scene))
	require.Len(t, b.Executed(), 1)
}

func TestMeshCombineMergesMatchingRenderers(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	rs, err := NewRendererSystem(r, nil)
	require.NoError(t, err)

	mat := material("lit", metadata.LightingModeLit)
	root := math.TransformFromPosition(math.NewVec3(1, 0, 0))
	left := NewMeshRenderer(builtin(t, r, "Cube"), math.TransformFromPosition(math.NewVec3(-1, 0, 0)), mat)
	right := NewMeshRenderer(builtin(t, r, "Cube"), math.TransformFromPosition(math.NewVec3(3, 0, 0)), mat)
	lonely := NewMeshRenderer(builtin(t, r, "Quad"), nil, mat)

	mc := NewMeshCombine(root, left, right, lonely)
	scene := NewScene()
	scene.AddRenderer(left)
	scene.AddRenderer(right)
	scene.AddRenderer(lonely)
	scene.AddCombine(mc)

	require.NoError(t, rs.DrawFrame(scene))
	require.True(t, mc.Processed())
	require.Len(t, mc.Combined(), 1)
	assert.False(t, left.Enabled)
	assert.False(t, right.Enabled)
	assert.True(t, lonely.Enabled)

	combined := mc.Combined()[0].Mesh
	assert.Equal(t, 48, combined.VertexCount())
	assert.Equal(t, 72, combined.IndexCount())
	// Vertices live in root space: the cubes sit at -2 and +2 around it.
	local := combined.Bounds()
	assert.True(t, local.Min.Compare(math.NewVec3(-2.5, -0.5, -0.5), 1e-5), "got %+v", local.Min)
	assert.True(t, local.Max.Compare(math.NewVec3(2.5, 0.5, 0.5), 1e-5), "got %+v", local.Max)
	assert.True(t, mc.Bounds().Min.Compare(math.NewVec3(-1.5, -0.5, -0.5), 1e-5))

	// The combined mesh and the quad: two draws.
	assert.Len(t, b.Executed(), 2)

	updates := rs.MeshCombineSystem().BoundsUpdates()
	require.NoError(t, rs.DrawFrame(scene))
	assert.Equal(t, updates, rs.MeshCombineSystem().BoundsUpdates())
	assert.Len(t, mc.Combined(), 1)

	root.Translate(math.NewVec3(0, 10, 0))
	require.NoError(t, rs.DrawFrame(scene))
	assert.Equal(t, updates+1, rs.MeshCombineSystem().BoundsUpdates())
	assert.True(t, mc.Bounds().Min.Compare(math.NewVec3(-1.5, 9.5, -0.5), 1e-5))
}

func TestMeshCombineSkipsIneligible(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	a := material("a", metadata.LightingModeLit)
	c := material("c", metadata.LightingModeLit)

	withSubmeshes, err := resources.NewMesh(r, "", resources.DefaultMeshFlags)
	require.NoError(t, err)
	require.NoError(t, withSubmeshes.SetGeometry(resources.GenerateQuad(1, 1)))
	require.True(t, withSubmeshes.AddSubmesh(resources.Submesh{VertexCount: 4, IndexCount: 3}))

	dynamic := func() *resources.Mesh {
		m, err := resources.NewMesh(r, "", resources.DefaultMeshFlags|resources.MeshDynamic)
		require.NoError(t, err)
		require.NoError(t, m.SetGeometry(resources.GenerateQuad(1, 1)))
		return m
	}

	renderers := []*MeshRenderer{
		NewMeshRenderer(builtin(t, r, "Cube"), nil, a),
		NewMeshRenderer(builtin(t, r, "Cube"), nil, c),
		NewMeshRenderer(builtin(t, r, "Cube"), nil, a, c),
		NewMeshRenderer(withSubmeshes, nil, a),
		NewMeshRenderer(dynamic(), nil, c),
		NewMeshRenderer(dynamic(), math.TransformFromPosition(math.NewVec3(2, 0, 0)), c),
	}
	mc := NewMeshCombine(nil, renderers...)
	NewMeshCombineSystem(r).Process([]*MeshCombine{mc})

	assert.True(t, mc.Processed())
	assert.Empty(t, mc.Combined())
	for _, mr := range renderers {
		assert.True(t, mr.Enabled)
	}
}

func TestMeshCombineDestroysSources(t *testing.T) {
	r, b := newTestRenderer(t, nil)
	mat := material("lit", metadata.LightingModeLit)
	first := builtin(t, r, "Quad")
	second := builtin(t, r, "Quad")
	require.NoError(t, first.UploadMeshData())
	require.NoError(t, second.UploadMeshData())

	mc := NewMeshCombine(nil, NewMeshRenderer(first, nil, mat), NewMeshRenderer(second, nil, mat))
	mc.DestroySources = true
	NewMeshCombineSystem(r).Process([]*MeshCombine{mc})

	require.Len(t, mc.Combined(), 1)
	assert.False(t, first.HasBuffers())
	assert.False(t, second.HasBuffers())
	vertex, index, _ := b.Live()
	assert.Zero(t, vertex)
	assert.Zero(t, index)
}

func TestJobSystemWaitsForAllJobs(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)
	defer js.Shutdown()

	var done atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, js.Submit(JobTask{
			Name: "count",
			Run: func(ctx context.Context) error {
				done.Add(1)
				return nil
			},
		}))
	}
	require.NoError(t, js.Wait())
	assert.Equal(t, int32(50), done.Load())
}

func TestJobSystemReportsFailures(t *testing.T) {
	js, err := NewJobSystem(2, 0)
	require.NoError(t, err)

	var failed atomic.Bool
	require.NoError(t, js.Submit(JobTask{
		Name:      "broken",
		Run:       func(ctx context.Context) error { return errors.New("boom") },
		OnFailure: func(err error) { failed.Store(true) },
	}))
	err = js.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.True(t, failed.Load())
	assert.NoError(t, js.Wait())

	require.NoError(t, js.Shutdown())
	assert.True(t, errors.Is(js.Submit(JobTask{Run: func(context.Context) error { return nil }}), ErrJobSystemStopped))

	_, err = NewJobSystem(0, 1)
	assert.True(t, errors.Is(err, ErrNoWorkers))
}

func TestMaterialSystem(t *testing.T) {
	ms, err := NewMaterialSystem(&MaterialSystemConfig{MaxMaterialCount: 1})
	require.NoError(t, err)

	def, ok := ms.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, metadata.DefaultMaterialName, def.Name)

	m := &metadata.Material{Name: "brick"}
	require.NoError(t, ms.Register(m))
	assert.NotEmpty(t, m.Guid)
	got, ok := ms.GetByName("brick")
	require.True(t, ok)
	assert.Same(t, m, got)

	replacement := &metadata.Material{Guid: m.Guid, Name: "brick"}
	require.NoError(t, ms.Register(replacement))
	assert.Equal(t, uint32(1), replacement.Generation)

	err = ms.Register(&metadata.Material{Name: "stone"})
	assert.True(t, errors.Is(err, core.ErrInvalidOperation))

	ms.Release(m.Guid)
	assert.Zero(t, ms.Len())

	_, err = NewMaterialSystem(&MaterialSystemConfig{})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}
