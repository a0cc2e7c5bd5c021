package resources

import (
	"bytes"
	"encoding/binary"
	gomath "math"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// ChannelMask returns which vertex attributes the mesh can provide.
func (m *Mesh) ChannelMask() metadata.ChannelMask {
	if m.blob != nil {
		return metadata.ChannelMask(m.blobLayout.Components)
	}
	var mask metadata.ChannelMask
	if len(m.vertices) > 0 {
		mask = mask.With(metadata.VertexAttributePosition)
	}
	for ch := Channel(0); ch < ChannelCount; ch++ {
		if m.Has(ch) {
			mask = mask.With(ch.Attribute())
		}
	}
	return mask
}

// ChannelSignature is the layout cache key of the mesh's channel set.
func (m *Mesh) ChannelSignature() string {
	return m.ChannelMask().With(metadata.VertexAttributePosition).Signature()
}

func (m *Mesh) layoutCache() *metadata.VertexLayoutCache {
	if m.renderer != nil {
		return m.renderer.Layouts()
	}
	return metadata.DefaultVertexLayoutCache()
}

/**
 * @brief Returns the shared layout for the populated channels. Meshes with the
 * same channel set receive the same pointer.
 */
func (m *Mesh) GetVertexLayout() (*metadata.VertexLayout, error) {
	if m.blob != nil {
		return m.blobLayout, nil
	}
	if len(m.vertices) == 0 {
		return nil, core.InvalidOperationf("mesh %s has no vertices", m.guid)
	}
	return m.layoutCache().LayoutFor(m.ChannelMask())
}

/**
 * @brief Interleaves the channels the layout names into one buffer of
 * layout.Stride bytes per vertex. Byte colours are widened to floats.
 */
func (m *Mesh) MakeVertexDataBlob(layout *metadata.VertexLayout) ([]byte, error) {
	if layout == nil || layout.Stride == 0 {
		return nil, core.InvalidArgumentf("MakeVertexDataBlob needs a layout")
	}
	if m.blob != nil {
		return nil, core.InvalidOperationf("mesh %s already holds a packed vertex blob", m.guid)
	}
	n := len(m.vertices)
	out := make([]byte, int(layout.Stride)*n)

	for _, e := range layout.Elements {
		if e.Offset+e.Size > layout.Stride {
			return nil, core.InvalidOperationf("element %s at offset %d crosses the %d byte stride", e.Attribute, e.Offset, layout.Stride)
		}
		if want := metadata.CanonicalVertexType(e.Attribute); e.Type != want {
			return nil, errors.Mark(errors.Newf("element %s packed as type %d, only type %d is generated", e.Attribute, e.Type, want), core.ErrUnsupported)
		}
		write, err := m.elementWriter(e.Attribute)
		if err != nil {
			return nil, err
		}
		for v := 0; v < n; v++ {
			off := v*int(layout.Stride) + int(e.Offset)
			if off+int(e.Size) > len(out) || (off-int(e.Offset))%int(layout.Stride) != 0 {
				return nil, core.InvalidOperationf("vertex %d element %s writes outside the blob", v, e.Attribute)
			}
			write(out[off:off+int(e.Size)], v)
		}
	}
	return out, nil
}

// elementWriter returns a function packing vertex v of one attribute into dst.
func (m *Mesh) elementWriter(a metadata.VertexAttribute) (func(dst []byte, v int), error) {
	if a == metadata.VertexAttributePosition {
		return func(dst []byte, v int) { putVec3(dst, m.vertices[v]) }, nil
	}
	ch := Channel(a - 1)
	if !m.Has(ch) {
		return nil, core.InvalidOperationf("layout requires %s which mesh %s does not have", a, m.guid)
	}
	switch {
	case ch <= ChannelBitangent:
		src := m.vec3s[ch]
		return func(dst []byte, v int) { putVec3(dst, src[v]) }, nil
	case ch <= ChannelColor3:
		set := ch - ChannelColor0
		if src := m.colors[set]; src != nil {
			return func(dst []byte, v int) { putVec4(dst, src[v]) }, nil
		}
		src := m.colors32[set]
		return func(dst []byte, v int) { putVec4(dst, src[v].ToVec4()) }, nil
	case ch <= ChannelTexCoord7:
		src := m.uvs[ch-ChannelTexCoord0]
		return func(dst []byte, v int) { putVec2(dst, src[v]) }, nil
	default:
		src := m.bones[ch-ChannelBoneIndices]
		return func(dst []byte, v int) { putVec4(dst, src[v]) }, nil
	}
}

func putFloat(dst []byte, f float32) {
	binary.LittleEndian.PutUint32(dst, gomath.Float32bits(f))
}

func putVec2(dst []byte, v math.Vec2) {
	putFloat(dst[0:], v.X)
	putFloat(dst[4:], v.Y)
}

func putVec3(dst []byte, v math.Vec3) {
	putFloat(dst[0:], v.X)
	putFloat(dst[4:], v.Y)
	putFloat(dst[8:], v.Z)
}

func putVec4(dst []byte, v math.Vec4) {
	putFloat(dst[0:], v.X)
	putFloat(dst[4:], v.Y)
	putFloat(dst[8:], v.Z)
	putFloat(dst[12:], v.W)
}

func getFloat(src []byte) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(src))
}

/**
 * @brief Supplies pre-packed vertex data. Per-channel data is dropped and
 * per-channel getters fail until SetVertices is called again. When the
 * vertex count changes the indices and submeshes are dropped too.
 */
func (m *Mesh) SetMeshData(blob []byte, layout *metadata.VertexLayout) error {
	if err := m.checkWrite(); err != nil {
		return err
	}
	if layout == nil || layout.Stride == 0 {
		return core.InvalidArgumentf("SetMeshData needs a layout")
	}
	if len(blob) == 0 || len(blob)%int(layout.Stride) != 0 {
		return core.InvalidArgumentf("vertex blob of %d bytes is not a multiple of the %d byte stride", len(blob), layout.Stride)
	}
	count := len(blob) / int(layout.Stride)
	if count != m.VertexCount() {
		m.indices = nil
		m.submeshes = nil
	}
	m.vertices = nil
	m.resetChannels()
	m.blob = cloneSlice(blob)
	m.blobLayout = layout
	m.blobVertices = count
	m.changed = true
	return nil
}

// SetMeshDataSlice packs a slice of fixed-size vertex structs and stores it
// with SetMeshData. T must be encodable with encoding/binary.
func SetMeshDataSlice[T any](m *Mesh, data []T, layout *metadata.VertexLayout) error {
	if binary.Size(data) <= 0 {
		return core.InvalidArgumentf("vertex data of type %T has no fixed size", data)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return errors.Wrap(err, "packing vertex data")
	}
	return m.SetMeshData(buf.Bytes(), layout)
}

// positions returns the vertex positions, decoding them from the blob when needed.
func (m *Mesh) positions() []math.Vec3 {
	if m.blob == nil {
		return m.vertices
	}
	e, ok := m.blobLayout.Element(metadata.VertexAttributePosition)
	if !ok || e.Type != metadata.VertexAttributeTypeFloat3 {
		return nil
	}
	out := make([]math.Vec3, m.blobVertices)
	stride := int(m.blobLayout.Stride)
	for i := range out {
		off := i*stride + int(e.Offset)
		out[i] = math.Vec3{
			X: getFloat(m.blob[off:]),
			Y: getFloat(m.blob[off+4:]),
			Z: getFloat(m.blob[off+8:]),
		}
	}
	return out
}

// IsPacked reports whether the vertices were supplied as a packed blob.
func (m *Mesh) IsPacked() bool {
	return m.blob != nil
}
