package headless

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func (b *Backend) CreateVertexBuffer(data []byte, flags metadata.ResourceFlags) metadata.ResourceHandle {
	return b.createBuffer(kindVertex, b.vertexBuffers, data, metadata.IndexFormatUInt16, flags)
}

func (b *Backend) UpdateVertexBuffer(handle metadata.ResourceHandle, data []byte, ranges ...metadata.BufferUpdateRange) bool {
	return b.updateBuffer(kindVertex, b.vertexBuffers, handle, data, ranges)
}

func (b *Backend) ReadVertexBuffer(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool {
	return b.queueRead(kindVertex, handle, callback)
}

func (b *Backend) DestroyVertexBuffer(handle metadata.ResourceHandle) {
	if !b.initialized {
		return
	}
	if _, ok := b.vertexBuffers.Release(handle); ok {
		b.dropPending(kindVertex, handle)
	}
}

func (b *Backend) CreateIndexBuffer(data []byte, format metadata.IndexFormat, flags metadata.ResourceFlags) metadata.ResourceHandle {
	if format == metadata.IndexFormatUInt32 {
		flags |= metadata.ResourceFlagIndex32
	}
	if uint32(len(data))%format.Size() != 0 {
		core.LogError("index data of %d bytes is not a multiple of the index size %d", len(data), format.Size())
		return metadata.InvalidHandle
	}
	return b.createBuffer(kindIndex, b.indexBuffers, data, format, flags)
}

func (b *Backend) UpdateIndexBuffer(handle metadata.ResourceHandle, data []byte, ranges ...metadata.BufferUpdateRange) bool {
	return b.updateBuffer(kindIndex, b.indexBuffers, handle, data, ranges)
}

func (b *Backend) ReadIndexBuffer(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool {
	return b.queueRead(kindIndex, handle, callback)
}

func (b *Backend) DestroyIndexBuffer(handle metadata.ResourceHandle) {
	if !b.initialized {
		return
	}
	if _, ok := b.indexBuffers.Release(handle); ok {
		b.dropPending(kindIndex, handle)
	}
}

func (b *Backend) createBuffer(
	kind resourceKind,
	table *metadata.ResourceTable[*buffer],
	data []byte,
	format metadata.IndexFormat,
	flags metadata.ResourceFlags,
) metadata.ResourceHandle {
	if !b.initialized {
		core.LogError("cannot create %s buffer: %s", kind, core.ErrBackendNotInitialized)
		return metadata.InvalidHandle
	}
	if len(data) == 0 {
		core.LogError("cannot create an empty %s buffer", kind)
		return metadata.InvalidHandle
	}
	h := table.Reserve(flags)
	if !h.Valid {
		core.LogError("%s buffer table exhausted (%d slots)", kind, table.Capacity())
		return metadata.InvalidHandle
	}
	slot, _ := table.TryGet(h)
	slot.Native = &buffer{data: make([]byte, len(data)), format: format}
	slot.Length = uint64(len(data))

	if !b.upload(pendingCopy{kind: kind, handle: h}, data) {
		table.Release(h)
		return metadata.InvalidHandle
	}
	return h
}

func (b *Backend) updateBuffer(
	kind resourceKind,
	table *metadata.ResourceTable[*buffer],
	h metadata.ResourceHandle,
	data []byte,
	ranges []metadata.BufferUpdateRange,
) bool {
	if !b.initialized {
		return false
	}
	slot, ok := table.TryGet(h)
	if !ok {
		core.LogError("update of unknown %s buffer %d", kind, h.Index)
		return false
	}
	if uint64(len(data)) != slot.Length {
		core.LogWarn("%s buffer %d holds %d bytes, update has %d", kind, h.Index, slot.Length, len(data))
		return false
	}
	for _, r := range ranges {
		if r.Length == 0 || r.Offset+r.Length > slot.Length {
			core.LogError("%s buffer %d update range [%d,+%d) out of bounds", kind, h.Index, r.Offset, r.Length)
			return false
		}
	}
	c := pendingCopy{kind: kind, handle: h}
	if len(ranges) > 0 {
		c.ranges = append([]metadata.BufferUpdateRange(nil), ranges...)
	}
	return b.upload(c, data)
}

// upload stages data. While a command is recording the copy waits for
// SubmitCommand, otherwise it runs immediately.
func (b *Backend) upload(c pendingCopy, data []byte) bool {
	st, err := b.staging.Acquire(metadata.TransferUpload, uint64(len(data)))
	if err != nil {
		core.LogError("acquiring staging buffer: %s", err)
		return false
	}
	copy(st, data)
	c.staging = st
	if b.recording {
		b.copies = append(b.copies, c)
		return true
	}
	b.executeCopy(c)
	return true
}

func (b *Backend) executeCopy(c pendingCopy) {
	defer b.staging.Return(metadata.TransferUpload, uint64(len(c.staging)), c.staging)

	var copied int
	switch c.kind {
	case kindVertex, kindIndex:
		table := b.vertexBuffers
		if c.kind == kindIndex {
			table = b.indexBuffers
		}
		slot, ok := table.TryGet(c.handle)
		if !ok {
			return
		}
		dst := slot.Native.data
		if len(c.ranges) == 0 {
			copied = copy(dst, c.staging)
			break
		}
		for _, r := range c.ranges {
			copied += copy(dst[r.Offset:r.Offset+r.Length], c.staging[r.Offset:r.Offset+r.Length])
		}
	case kindTexture:
		slot, ok := b.textures.TryGet(c.handle)
		if !ok {
			return
		}
		copied = slot.Native.write(c.region, c.staging)
	}
	b.stats.Copies++
	b.stats.BytesUploaded += uint64(copied)
}

func (b *Backend) resourceBytes(kind resourceKind, h metadata.ResourceHandle) ([]byte, bool) {
	switch kind {
	case kindVertex:
		if s, ok := b.vertexBuffers.TryGet(h); ok {
			return s.Native.data, true
		}
	case kindIndex:
		if s, ok := b.indexBuffers.TryGet(h); ok {
			return s.Native.data, true
		}
	case kindTexture:
		if s, ok := b.textures.TryGet(h); ok {
			return s.Native.pixels, true
		}
	}
	return nil, false
}

func (b *Backend) queueRead(kind resourceKind, h metadata.ResourceHandle, callback metadata.ReadbackCallback) bool {
	if !b.initialized || callback == nil {
		return false
	}
	if _, ok := b.resourceBytes(kind, h); !ok {
		core.LogError("read-back of unknown %s resource %d", kind, h.Index)
		return false
	}
	b.reads = append(b.reads, pendingRead{kind: kind, handle: h, callback: callback, inCommand: b.recording})
	return true
}

// resolveReads completes queued read-backs through download staging buffers.
// When includeCommand is false, reads recorded in the open command stay queued.
func (b *Backend) resolveReads(includeCommand bool) {
	var ready, waiting []pendingRead
	for _, r := range b.reads {
		if r.inCommand && !includeCommand {
			waiting = append(waiting, r)
			continue
		}
		ready = append(ready, r)
	}
	b.reads = waiting

	for _, r := range ready {
		src, ok := b.resourceBytes(r.kind, r.handle)
		if !ok {
			b.stats.FailedReadbacks++
			r.callback(nil, releasedError(r.kind, r.handle))
			continue
		}
		st, err := b.staging.Acquire(metadata.TransferDownload, uint64(len(src)))
		if err != nil {
			b.stats.FailedReadbacks++
			r.callback(nil, err)
			continue
		}
		copy(st, src)
		out := append([]byte(nil), st...)
		b.staging.Return(metadata.TransferDownload, uint64(len(st)), st)
		b.stats.Readbacks++
		r.callback(out, nil)
	}
}

// dropPending discards copies and draws referencing a released resource and
// fails its outstanding read-backs.
func (b *Backend) dropPending(kind resourceKind, h metadata.ResourceHandle) {
	copies := b.copies[:0]
	for _, c := range b.copies {
		if c.kind == kind && c.handle == h {
			b.staging.Return(metadata.TransferUpload, uint64(len(c.staging)), c.staging)
			continue
		}
		copies = append(copies, c)
	}
	b.copies = copies

	recorded := b.recorded[:0]
	for _, d := range b.recorded {
		if drawReferences(d.State, kind, h) {
			continue
		}
		recorded = append(recorded, d)
	}
	b.recorded = recorded

	var failed []pendingRead
	reads := b.reads[:0]
	for _, r := range b.reads {
		if r.kind == kind && r.handle == h {
			failed = append(failed, r)
			continue
		}
		reads = append(reads, r)
	}
	b.reads = reads
	for _, r := range failed {
		b.stats.FailedReadbacks++
		r.callback(nil, releasedError(kind, h))
	}

	b.released(kind, h)
}

func drawReferences(s metadata.RenderState, kind resourceKind, h metadata.ResourceHandle) bool {
	switch kind {
	case kindVertex:
		return s.VertexBuffer == h || (s.InstanceBuffer.Valid && s.InstanceBuffer == h)
	case kindIndex:
		return s.IndexBuffer == h
	case kindTexture:
		return s.DiffuseTexture.Valid && s.DiffuseTexture == h
	}
	return false
}
