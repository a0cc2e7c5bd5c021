package metadata

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayoutBuilder(t *testing.T) {
	b := NewVertexLayoutBuilder()
	require.NoError(t, b.Add(VertexAttributePosition, VertexAttributeTypeFloat3))
	require.NoError(t, b.Add(VertexAttributeColor0, VertexAttributeTypeUByte4Norm))
	require.NoError(t, b.Add(VertexAttributeTexCoord0, VertexAttributeTypeUShort2Norm))

	l := b.Build()
	require.NotNil(t, l)
	assert.Equal(t, uint32(20), l.Stride)
	assert.Equal(t, uint32(12), l.Elements[1].Offset)
	assert.Equal(t, uint32(16), l.Elements[2].Offset)
	assert.True(t, l.Has(VertexAttributeColor0))
	assert.False(t, l.Has(VertexAttributeNormal))

	// frozen
	require.NoError(t, b.Add(VertexAttributeNormal, VertexAttributeTypeFloat3))
	assert.Same(t, l, b.Build())
	assert.Len(t, l.Elements, 3)
}

func TestVertexLayoutBuilderEmptyAndUnknown(t *testing.T) {
	b := NewVertexLayoutBuilder()
	err := b.Add(VertexAttributePosition, VertexAttributeType(200))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.Nil(t, b.Build())
	assert.Nil(t, b.Build())
}

func TestVertexAttributeTypeSizes(t *testing.T) {
	cases := map[VertexAttributeType]uint32{
		VertexAttributeTypeFloat:       4,
		VertexAttributeTypeFloat2:      8,
		VertexAttributeTypeFloat3:      12,
		VertexAttributeTypeFloat4:      16,
		VertexAttributeTypeByte4Norm:   4,
		VertexAttributeTypeShort4Norm:  8,
		VertexAttributeTypeUShort2Norm: 4,
		VertexAttributeTypeHalf4:       8,
		VertexAttributeTypeInt4:        16,
	}
	for typ, want := range cases {
		got, err := typ.Size()
		require.NoError(t, err)
		assert.Equal(t, want, got, "type %d", typ)
	}
}

func TestVertexLayoutCacheSharesInstances(t *testing.T) {
	c := NewVertexLayoutCache(nil)
	mask := ChannelMask(0).With(VertexAttributeTexCoord0)

	a, err := c.LayoutFor(mask)
	require.NoError(t, err)
	b, err := c.LayoutFor(mask.With(VertexAttributePosition))
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, uint32(20), a.Stride)
	assert.Equal(t, "Position|TexCoord0", mask.With(VertexAttributePosition).Signature())

	var all ChannelMask
	for at := VertexAttribute(0); at < VertexAttributeCount; at++ {
		all = all.With(at)
	}
	full, err := c.LayoutFor(all)
	require.NoError(t, err)
	assert.Equal(t, uint32(12*4+16*4+8*8+16+16), full.Stride)
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	again, err := c.LayoutFor(mask)
	require.NoError(t, err)
	assert.NotSame(t, a, again)
}

func TestResourceTableExhaustionAndReuse(t *testing.T) {
	const capacity = 4
	tbl := NewResourceTable[int](capacity)
	handles := make([]ResourceHandle, 0, capacity)
	for i := 0; i < capacity; i++ {
		h := tbl.Reserve(ResourceFlagNone)
		require.True(t, h.Valid)
		handles = append(handles, h)
	}
	assert.False(t, tbl.Reserve(ResourceFlagNone).Valid)

	_, ok := tbl.Release(handles[2])
	require.True(t, ok)
	_, ok = tbl.TryGet(handles[2])
	assert.False(t, ok)

	h := tbl.Reserve(ResourceFlagDynamic)
	require.True(t, h.Valid)
	assert.Equal(t, handles[2].Index, h.Index)
	s, ok := tbl.TryGet(h)
	require.True(t, ok)
	assert.True(t, s.Flags.Has(ResourceFlagDynamic))
	assert.Equal(t, uint32(capacity), tbl.Used())

	_, ok = tbl.TryGet(InvalidHandle)
	assert.False(t, ok)
}

func TestTransferBufferPoolReuse(t *testing.T) {
	var created, destroyed int
	pool := NewTransferBufferPool[[]byte](1,
		func(_ TransferDirection, size uint64) ([]byte, error) {
			created++
			return make([]byte, size), nil
		},
		func([]byte) { destroyed++ },
	)

	a, err := pool.Acquire(TransferUpload, 64)
	require.NoError(t, err)
	pool.Return(TransferUpload, 64, a)

	b, err := pool.Acquire(TransferUpload, 64)
	require.NoError(t, err)
	assert.Len(t, b, 64)
	assert.Equal(t, 1, created)

	_, err = pool.Acquire(TransferDownload, 64)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	c, _ := pool.Acquire(TransferUpload, 64)
	pool.Return(TransferUpload, 64, b)
	pool.Return(TransferUpload, 64, c)
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 1, pool.Idle())

	pool.Drain()
	assert.Equal(t, 2, destroyed)
	assert.Zero(t, pool.Idle())
}

func TestTopologyValidateIndexCount(t *testing.T) {
	assert.NoError(t, TopologyTriangles.ValidateIndexCount(6))
	err := TopologyTriangles.ValidateIndexCount(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 5")
	assert.Error(t, TopologyTriangleStrip.ValidateIndexCount(2))
	assert.NoError(t, TopologyLines.ValidateIndexCount(4))
	assert.Error(t, TopologyLineStrip.ValidateIndexCount(1))
	assert.Equal(t, uint32(2), TopologyTriangles.PrimitiveCount(6))
}

func TestChangedRanges(t *testing.T) {
	prev := make([]byte, 64)
	next := append([]byte(nil), prev...)
	assert.Nil(t, ChangedRanges(prev, next))

	// single byte widens to its word
	next[5] = 1
	assert.Equal(t, []BufferUpdateRange{{Offset: 4, Length: 4}}, ChangedRanges(prev, next))

	// close words merge, distant ones do not
	next[13] = 1
	next[60] = 1
	assert.Equal(t, []BufferUpdateRange{
		{Offset: 4, Length: 12},
		{Offset: 60, Length: 4},
	}, ChangedRanges(prev, next))

	// tail shorter than a word
	odd := []byte{0, 0, 0, 0, 0, 0}
	assert.Equal(t, []BufferUpdateRange{{Offset: 4, Length: 2}}, ChangedRanges(odd, []byte{0, 0, 0, 0, 0, 9}))

	assert.Equal(t, []BufferUpdateRange{{Offset: 0, Length: 8}}, ChangedRanges(prev[:4], prev[:8]))
}
