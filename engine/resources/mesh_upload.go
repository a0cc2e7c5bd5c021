package resources

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const maxUInt16Index = 0xFFFF

// encodeIndices converts the indices to the declared format.
func (m *Mesh) encodeIndices() ([]byte, error) {
	size := int(m.indexFormat.Size())
	out := make([]byte, len(m.indices)*size)
	for i, idx := range m.indices {
		if m.indexFormat == metadata.IndexFormatUInt16 {
			if idx > maxUInt16Index {
				return nil, core.InvalidArgumentf("index %d has value %d which does not fit a 16-bit index buffer of mesh %s", i, idx, m.guid)
			}
			binary.LittleEndian.PutUint16(out[i*2:], uint16(idx))
			continue
		}
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out, nil
}

// HasBuffers reports whether both GPU buffers are live.
func (m *Mesh) HasBuffers() bool {
	return m.vertexBuffer.Valid && m.indexBuffer.Valid
}

func (m *Mesh) VertexBuffer() metadata.ResourceHandle { return m.vertexBuffer }
func (m *Mesh) IndexBuffer() metadata.ResourceHandle  { return m.indexBuffer }

/**
 * @brief Uploads the CPU data to the GPU. Does nothing when nothing changed
 * and both buffers exist. Dynamic meshes update their buffers in place when
 * the byte sizes are unchanged; other meshes recreate them. If either buffer
 * fails both are released and the error matches core.ErrUploadFailed.
 */
func (m *Mesh) UploadMeshData() error {
	if m.renderer == nil {
		return errors.Wrapf(core.ErrBackendNotInitialized, "mesh %s has no renderer", m.guid)
	}
	if !m.changed && m.HasBuffers() {
		return nil
	}
	if m.VertexCount() == 0 {
		return core.InvalidOperationf("mesh %s has no vertex data", m.guid)
	}
	if len(m.indices) == 0 {
		return core.InvalidOperationf("mesh %s has no indices", m.guid)
	}
	if err := m.topology.ValidateIndexCount(len(m.indices)); err != nil {
		return errors.Wrapf(err, "mesh %s", m.guid)
	}

	var (
		layout *metadata.VertexLayout
		blob   []byte
		err    error
	)
	if m.blob != nil {
		layout, blob = m.blobLayout, m.blob
	} else {
		if layout, err = m.GetVertexLayout(); err != nil {
			return err
		}
		if blob, err = m.MakeVertexDataBlob(layout); err != nil {
			return err
		}
	}
	indexData, err := m.encodeIndices()
	if err != nil {
		return err
	}

	backend := m.renderer.Backend()
	flags := metadata.ResourceFlagNone
	if m.dynamic {
		flags |= metadata.ResourceFlagDynamic
	}

	vb, ok := m.uploadBuffer(m.vertexBuffer, m.vertexBytes, m.vertexData, blob, flags, m.dynamic,
		backend.CreateVertexBuffer,
		backend.UpdateVertexBuffer,
		backend.DestroyVertexBuffer)
	if !ok {
		m.vertexBuffer, m.vertexData = metadata.InvalidHandle, nil
		m.releaseIndexBuffer()
		return errors.Mark(errors.Newf("creating vertex buffer for mesh %s (%d bytes)", m.guid, len(blob)), core.ErrUploadFailed)
	}
	m.vertexBuffer, m.vertexBytes = vb, len(blob)

	// A buffer created for another index format is never reused.
	reuseIndex := m.dynamic && m.bufferFormat == m.indexFormat
	ib, ok := m.uploadBuffer(m.indexBuffer, m.indexBytes, m.indexData, indexData, flags, reuseIndex,
		func(d []byte, f metadata.ResourceFlags) metadata.ResourceHandle {
			return backend.CreateIndexBuffer(d, m.indexFormat, f)
		},
		backend.UpdateIndexBuffer,
		backend.DestroyIndexBuffer)
	if !ok {
		m.indexBuffer, m.indexData = metadata.InvalidHandle, nil
		m.releaseVertexBuffer()
		return errors.Mark(errors.Newf("creating index buffer for mesh %s (%d bytes)", m.guid, len(indexData)), core.ErrUploadFailed)
	}
	m.indexBuffer, m.indexBytes, m.bufferFormat = ib, len(indexData), m.indexFormat

	if m.dynamic {
		m.vertexData = append(m.vertexData[:0], blob...)
		m.indexData = append(m.indexData[:0], indexData...)
	}
	m.layout = layout
	m.changed = false
	if events := m.renderer.Events(); events != nil {
		events.Fire(m, core.NewEvent(core.MeshUploadedEvent{
			Guid:        m.guid,
			VertexCount: m.VertexCount(),
			IndexCount:  len(m.indices),
			Bytes:       len(blob) + len(indexData),
		}))
	}
	return nil
}

/**
 * @brief Updates current in place when reuse is allowed and the size is
 * unchanged, otherwise replaces it. In-place updates copy only the words
 * that differ from previous, the data of the last upload.
 */
func (m *Mesh) uploadBuffer(
	current metadata.ResourceHandle,
	currentBytes int,
	previous, data []byte,
	flags metadata.ResourceFlags,
	reuse bool,
	create func([]byte, metadata.ResourceFlags) metadata.ResourceHandle,
	update func(metadata.ResourceHandle, []byte, ...metadata.BufferUpdateRange) bool,
	destroy func(metadata.ResourceHandle),
) (metadata.ResourceHandle, bool) {
	if current.Valid && reuse && currentBytes == len(data) {
		var ranges []metadata.BufferUpdateRange
		if len(previous) == len(data) {
			if ranges = metadata.ChangedRanges(previous, data); len(ranges) == 0 {
				return current, true
			}
		}
		if update(current, data, ranges...) {
			return current, true
		}
		core.LogWarn("in-place update of mesh %s failed, recreating buffer", m.guid)
	}
	if current.Valid {
		destroy(current)
	}
	h := create(data, flags)
	return h, h.Valid
}

func (m *Mesh) releaseVertexBuffer() {
	if m.vertexBuffer.Valid && m.renderer != nil {
		m.renderer.Backend().DestroyVertexBuffer(m.vertexBuffer)
	}
	m.vertexBuffer = metadata.InvalidHandle
	m.vertexBytes = 0
	m.vertexData = nil
}

func (m *Mesh) releaseIndexBuffer() {
	if m.indexBuffer.Valid && m.renderer != nil {
		m.renderer.Backend().DestroyIndexBuffer(m.indexBuffer)
	}
	m.indexBuffer = metadata.InvalidHandle
	m.indexBytes = 0
	m.indexData = nil
}

/**
 * @brief Prepares the draw range of a submesh, uploading first if needed.
 * Meshes without submeshes accept index 0 only and draw everything.
 */
func (m *Mesh) SetActive(submesh int) bool {
	if err := m.UploadMeshData(); err != nil {
		core.LogError("mesh %s: %s", m.guid, err)
		return false
	}
	if !m.HasBuffers() {
		return false
	}
	s, ok := m.submeshRange(submesh)
	if !ok {
		return false
	}
	m.active = metadata.RenderState{
		VertexBuffer: m.vertexBuffer,
		IndexBuffer:  m.indexBuffer,
		IndexFormat:  m.indexFormat,
		Layout:       m.layout,
		Range: metadata.DrawRange{
			StartVertex: s.StartVertex,
			VertexCount: s.VertexCount,
			StartIndex:  s.StartIndex,
			IndexCount:  s.IndexCount,
		},
		Topology: s.Topology,
	}
	return true
}

func (m *Mesh) submeshRange(i int) (Submesh, bool) {
	if len(m.submeshes) == 0 {
		if i != 0 {
			return Submesh{}, false
		}
		return Submesh{
			VertexCount: uint32(m.VertexCount()),
			IndexCount:  uint32(len(m.indices)),
			Topology:    m.topology,
		}, true
	}
	if i < 0 || i >= len(m.submeshes) {
		return Submesh{}, false
	}
	return m.submeshes[i], true
}

// ActiveState returns the draw state prepared by the last successful SetActive.
func (m *Mesh) ActiveState() metadata.RenderState {
	return m.active
}

// Destroy releases the GPU buffers. CPU data and the guid are kept, so a
// later upload recreates them.
func (m *Mesh) Destroy() {
	m.releaseVertexBuffer()
	m.releaseIndexBuffer()
	m.active = metadata.RenderState{}
	m.changed = true
}

/**
 * @brief Drops all CPU data. Static meshes also release their buffers;
 * dynamic meshes keep them so the next upload can reuse them.
 */
func (m *Mesh) Clear() error {
	if err := m.checkWrite(); err != nil {
		return err
	}
	m.vertices = nil
	m.resetChannels()
	m.dropBlob()
	m.indices = nil
	m.submeshes = nil
	m.bounds = math.NewExtentsEmpty()
	if !m.dynamic {
		m.Destroy()
	}
	m.changed = true
	return nil
}
