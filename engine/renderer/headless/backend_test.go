package headless

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, cfg *metadata.RendererBackendConfig) *Backend {
	t.Helper()
	b := New()
	require.NoError(t, b.Initialize(cfg))
	t.Cleanup(func() {
		if b.initialized {
			_ = b.Shutdown()
		}
	})
	return b
}

func readNow(t *testing.T, b *Backend, read func(metadata.ReadbackCallback) bool) []byte {
	t.Helper()
	var got []byte
	var gotErr error
	require.True(t, read(func(data []byte, err error) { got, gotErr = data, err }))
	require.NoError(t, b.WaitIdle())
	require.NoError(t, gotErr)
	return got
}

func quadState(t *testing.T, b *Backend) *metadata.RenderState {
	t.Helper()
	layout, err := metadata.NewVertexLayoutCache(b.CreateVertexLayoutBuilder).LayoutFor(0)
	require.NoError(t, err)
	vb := b.CreateVertexBuffer(make([]byte, 4*layout.Stride), metadata.ResourceFlagNone)
	ib := b.CreateIndexBuffer([]byte{0, 0, 1, 0, 2, 0, 0, 0, 2, 0, 3, 0}, metadata.IndexFormatUInt16, metadata.ResourceFlagNone)
	require.True(t, vb.Valid)
	require.True(t, ib.Valid)
	return &metadata.RenderState{
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexFormat:  metadata.IndexFormatUInt16,
		Layout:       layout,
		Range:        metadata.DrawRange{VertexCount: 4, IndexCount: 6},
		Topology:     metadata.TopologyTriangles,
		World:        math.NewMat4Identity(),
	}
}

func TestBufferTableExhaustionAndReuse(t *testing.T) {
	b := newBackend(t, &metadata.RendererBackendConfig{MaxVertexBuffers: 2})

	h0 := b.CreateVertexBuffer([]byte{1}, metadata.ResourceFlagNone)
	h1 := b.CreateVertexBuffer([]byte{2}, metadata.ResourceFlagNone)
	require.True(t, h0.Valid)
	require.True(t, h1.Valid)
	assert.False(t, b.CreateVertexBuffer([]byte{3}, metadata.ResourceFlagNone).Valid)

	b.DestroyVertexBuffer(h0)
	h2 := b.CreateVertexBuffer([]byte{4}, metadata.ResourceFlagNone)
	require.True(t, h2.Valid)
	assert.Equal(t, h0.Index, h2.Index)
	assert.Equal(t, []byte{4}, readNow(t, b, func(cb metadata.ReadbackCallback) bool { return b.ReadVertexBuffer(h2, cb) }))
}

func TestPartialUpdateCopiesOnlyRanges(t *testing.T) {
	b := newBackend(t, nil)
	h := b.CreateVertexBuffer([]byte{0, 0, 0, 0, 0, 0, 0, 0}, metadata.ResourceFlagDynamic)
	require.True(t, h.Valid)

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.True(t, b.UpdateVertexBuffer(h, src,
		metadata.BufferUpdateRange{Offset: 1, Length: 2},
		metadata.BufferUpdateRange{Offset: 6, Length: 2},
	))
	got := readNow(t, b, func(cb metadata.ReadbackCallback) bool { return b.ReadVertexBuffer(h, cb) })
	assert.Equal(t, []byte{0, 2, 3, 0, 0, 0, 7, 8}, got)

	assert.False(t, b.UpdateVertexBuffer(h, src, metadata.BufferUpdateRange{Offset: 7, Length: 4}))
	assert.False(t, b.UpdateVertexBuffer(h, src[:4]))
}

func TestStagingBuffersAreReused(t *testing.T) {
	b := newBackend(t, nil)
	h := b.CreateVertexBuffer(make([]byte, 256), metadata.ResourceFlagDynamic)
	for i := 0; i < 5; i++ {
		require.True(t, b.UpdateVertexBuffer(h, make([]byte, 256)))
	}
	created, reused := b.StagingStats()
	assert.Equal(t, uint64(1), created)
	assert.Equal(t, uint64(5), reused)
}

func TestReadbackFailsWhenResourceReleased(t *testing.T) {
	events := core.NewEventSystem()
	var releasedIndex uint32 = 99
	events.Register(core.EventCodeResourceReleased, nil, func(_, _ interface{}, ctx core.EventContext) bool {
		releasedIndex = ctx.Payload.(core.ResourceReleasedEvent).Index
		return true
	})
	b := newBackend(t, &metadata.RendererBackendConfig{Events: events})
	h := b.CreateIndexBuffer([]byte{0, 0, 1, 0, 2, 0}, metadata.IndexFormatUInt16, metadata.ResourceFlagReadable)
	require.True(t, h.Valid)

	called := false
	var gotErr error
	require.True(t, b.ReadIndexBuffer(h, func(data []byte, err error) {
		called = true
		assert.Nil(t, data)
		gotErr = err
	}))
	b.DestroyIndexBuffer(h)

	assert.True(t, called)
	assert.True(t, errors.Is(gotErr, core.ErrResourceReleased))
	assert.Equal(t, h.Index, releasedIndex)
	assert.Equal(t, uint64(1), b.Stats().FailedReadbacks)
}

func TestSubmitRunsCopiesBeforeDraws(t *testing.T) {
	b := newBackend(t, nil)
	state := quadState(t, b)

	require.NoError(t, b.BeginCommand())
	require.True(t, b.UpdateVertexBuffer(state.VertexBuffer, make([]byte, 4*state.Layout.Stride)))
	assert.True(t, b.Render(&metadata.RenderPass{Name: "world"}, state))
	assert.Empty(t, b.Executed())
	require.NoError(t, b.SubmitCommand())

	draws := b.Executed()
	require.Len(t, draws, 1)
	assert.Equal(t, "world", draws[0].Pass)
	assert.Equal(t, uint32(2), draws[0].Primitives)
	assert.Equal(t, uint64(1), b.Stats().Draws)
}

func TestCancelKeepsStagedCopies(t *testing.T) {
	b := newBackend(t, nil)
	state := quadState(t, b)
	before := b.Stats().Copies

	require.NoError(t, b.BeginCommand())
	data := make([]byte, 4*state.Layout.Stride)
	data[0] = 7
	require.True(t, b.UpdateVertexBuffer(state.VertexBuffer, data))
	created := b.CreateIndexBuffer([]byte{0, 0, 1, 0, 2, 0}, metadata.IndexFormatUInt16, metadata.ResourceFlagNone)
	require.True(t, created.Valid)
	require.True(t, b.Render(nil, state))
	var readErr error
	require.True(t, b.ReadVertexBuffer(state.VertexBuffer, func(_ []byte, err error) { readErr = err }))
	b.CancelCommand()

	assert.True(t, errors.Is(readErr, core.ErrCommandCancelled))
	assert.Equal(t, before+2, b.Stats().Copies)
	assert.Equal(t, uint64(1), b.Stats().Cancels)
	assert.Equal(t, data, readNow(t, b, func(cb metadata.ReadbackCallback) bool { return b.ReadVertexBuffer(state.VertexBuffer, cb) }))
	assert.Equal(t, []byte{0, 0, 1, 0, 2, 0}, readNow(t, b, func(cb metadata.ReadbackCallback) bool { return b.ReadIndexBuffer(created, cb) }))

	require.NoError(t, b.BeginCommand())
	require.NoError(t, b.SubmitCommand())
	assert.Empty(t, b.Executed())
}

func TestFailedSubmitLeavesCommandOpen(t *testing.T) {
	b := newBackend(t, nil)
	state := quadState(t, b)

	require.NoError(t, b.BeginCommand())
	h := b.CreateVertexBuffer([]byte{1, 2, 3, 4}, metadata.ResourceFlagNone)
	require.True(t, h.Valid)
	require.True(t, b.Render(nil, state))

	lost := errors.New("device lost")
	b.FailNextSubmit(lost)
	assert.ErrorIs(t, b.SubmitCommand(), lost)
	assert.Empty(t, b.Executed())
	assert.True(t, b.Render(nil, state), "still recording")
	assert.Error(t, b.BeginCommand())

	b.CancelCommand()
	assert.Equal(t, []byte{1, 2, 3, 4}, readNow(t, b, func(cb metadata.ReadbackCallback) bool { return b.ReadVertexBuffer(h, cb) }))
	assert.Equal(t, uint64(0), b.Stats().Submits)
}

func TestDestroyDropsRecordedDraws(t *testing.T) {
	b := newBackend(t, nil)
	state := quadState(t, b)

	require.NoError(t, b.BeginCommand())
	require.True(t, b.Render(nil, state))
	b.DestroyIndexBuffer(state.IndexBuffer)
	require.NoError(t, b.SubmitCommand())
	assert.Empty(t, b.Executed())
}

func TestRenderRejectsBadState(t *testing.T) {
	b := newBackend(t, nil)
	state := quadState(t, b)

	assert.False(t, b.Render(nil, state), "not recording")
	require.NoError(t, b.BeginCommand())
	defer b.CancelCommand()

	bad := *state
	bad.Range.IndexCount = 9
	assert.False(t, b.Render(nil, &bad))

	bad = *state
	bad.IndexFormat = metadata.IndexFormatUInt32
	bad.Range.IndexCount = 3
	assert.False(t, b.Render(nil, &bad), "index format differs from the buffer")

	bad = *state
	bad.InstanceCount = 3
	assert.False(t, b.Render(nil, &bad))

	inst := b.CreateVertexBuffer(make([]byte, 3*instanceStride), metadata.ResourceFlagInstance)
	bad.InstanceBuffer = inst
	assert.True(t, b.Render(nil, &bad))
}

func TestTextureRegionUpdateAndRead(t *testing.T) {
	b := newBackend(t, nil)
	desc := metadata.TextureDescriptor{Name: "t", Width: 2, Height: 2, Format: metadata.TextureFormatR8}
	h := b.CreateTexture(desc, []byte{1, 2, 3, 4})
	require.True(t, h.Valid)

	require.True(t, b.UpdateTexture(h, metadata.TextureRegion{X: 1, Y: 1, Width: 1, Height: 1}, []byte{9}))
	got := readNow(t, b, func(cb metadata.ReadbackCallback) bool { return b.ReadTexture(h, cb) })
	assert.Equal(t, []byte{1, 2, 3, 9}, got)

	assert.False(t, b.UpdateTexture(h, metadata.TextureRegion{X: 1, Y: 1, Width: 2, Height: 1}, []byte{1, 2}))
	assert.False(t, b.CreateTexture(metadata.TextureDescriptor{Width: 0, Height: 1}, nil).Valid)
}

func TestShutdownReleasesEverything(t *testing.T) {
	b := New()
	require.NoError(t, b.Initialize(nil))
	b.CreateVertexBuffer([]byte{1}, 0)
	b.CreateIndexBuffer([]byte{0, 0}, metadata.IndexFormatUInt16, 0)
	v, i, _ := b.Live()
	assert.Equal(t, uint32(1), v)
	assert.Equal(t, uint32(1), i)
	require.NoError(t, b.Shutdown())
	assert.ErrorIs(t, b.Shutdown(), core.ErrBackendNotInitialized)
}
