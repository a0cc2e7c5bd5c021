package resources

import (
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// BuiltinPrefix is reserved for meshes created by NewBuiltinMesh.
const BuiltinPrefix = "Internal/"

const (
	MaxColorSets = 4
	MaxUVSets    = 8
)

/** @brief Optional per-vertex channels. Position is always present and not listed. */
type Channel uint8

const (
	ChannelNormal Channel = iota
	ChannelTangent
	ChannelBitangent
	ChannelColor0
	ChannelColor1
	ChannelColor2
	ChannelColor3
	ChannelTexCoord0
	ChannelTexCoord1
	ChannelTexCoord2
	ChannelTexCoord3
	ChannelTexCoord4
	ChannelTexCoord5
	ChannelTexCoord6
	ChannelTexCoord7
	ChannelBoneIndices
	ChannelBoneWeights
	ChannelCount
)

// Attribute is the vertex attribute the channel is packed as.
func (c Channel) Attribute() metadata.VertexAttribute {
	return metadata.VertexAttribute(c + 1)
}

func (c Channel) String() string {
	return c.Attribute().String()
}

func ColorChannel(set int) Channel { return ChannelColor0 + Channel(set) }
func TexCoordChannel(set int) Channel { return ChannelTexCoord0 + Channel(set) }

// Color32 is an 8-bit per component RGBA colour.
type Color32 struct {
	R, G, B, A uint8
}

func (c Color32) ToVec4() math.Vec4 {
	return math.Vec4{
		X: float32(c.R) / 255,
		Y: float32(c.G) / 255,
		Z: float32(c.B) / 255,
		W: float32(c.A) / 255,
	}
}

type MeshFlags uint8

const (
	MeshReadable MeshFlags = 1 << iota
	MeshWritable
	MeshDynamic

	DefaultMeshFlags = MeshReadable | MeshWritable
)

// Submesh is a range of a mesh drawn with its own material.
type Submesh struct {
	StartVertex uint32
	VertexCount uint32
	StartIndex  uint32
	IndexCount  uint32
	Topology    metadata.Topology
}

/**
 * @brief CPU-side geometry plus the GPU buffers it uploads to. Optional
 * channels must have exactly one entry per vertex. A mesh is not safe for
 * concurrent use; do not mutate it while it uploads.
 */
type Mesh struct {
	guid     string
	readable bool
	writable bool
	dynamic  bool
	changed  bool

	renderer *renderer.Renderer

	vertices []math.Vec3
	// normal, tangent, bitangent
	vec3s    [3][]math.Vec3
	colors   [MaxColorSets][]math.Vec4
	colors32 [MaxColorSets][]Color32
	uvs      [MaxUVSets][]math.Vec2
	// bone indices, bone weights
	bones [2][]math.Vec4

	indices     []uint32
	indexFormat metadata.IndexFormat
	topology    metadata.Topology
	submeshes   []Submesh

	blob         []byte
	blobLayout   *metadata.VertexLayout
	blobVertices int

	bounds math.Extents3D

	layout       *metadata.VertexLayout
	vertexBuffer metadata.ResourceHandle
	vertexBytes  int
	indexBuffer  metadata.ResourceHandle
	indexBytes   int
	bufferFormat metadata.IndexFormat
	// last uploaded contents, dynamic meshes only
	vertexData []byte
	indexData  []byte

	active metadata.RenderState
}

// NewMesh creates an empty mesh. r may be nil for CPU-only meshes, which can
// be edited and inspected but not uploaded.
func NewMesh(r *renderer.Renderer, guid string, flags MeshFlags) (*Mesh, error) {
	if strings.HasPrefix(guid, BuiltinPrefix) {
		return nil, core.InvalidArgumentf("mesh guid %q uses the reserved %q prefix", guid, BuiltinPrefix)
	}
	return newMesh(r, guid, flags), nil
}

func newMesh(r *renderer.Renderer, guid string, flags MeshFlags) *Mesh {
	if guid == "" {
		guid = metadata.GenerateGuid()
	}
	return &Mesh{
		guid:     guid,
		readable: flags&MeshReadable != 0,
		writable: flags&MeshWritable != 0,
		dynamic:  flags&MeshDynamic != 0,
		renderer: r,
		topology: metadata.TopologyTriangles,
		bounds:   math.NewExtentsEmpty(),
	}
}

func (m *Mesh) Guid() string { return m.guid }
func (m *Mesh) IsReadable() bool { return m.readable }
func (m *Mesh) IsWritable() bool { return m.writable }
func (m *Mesh) IsDynamic() bool { return m.dynamic }
func (m *Mesh) IsBuiltin() bool { return strings.HasPrefix(m.guid, BuiltinPrefix) }
func (m *Mesh) Changed() bool { return m.changed }
func (m *Mesh) Renderer() *renderer.Renderer { return m.renderer }

// MarkDynamic makes later uploads update the existing buffers in place when the sizes allow.
func (m *Mesh) MarkDynamic() {
	m.dynamic = true
}

// SetReadOnly drops write access. It cannot be restored.
func (m *Mesh) SetReadOnly() {
	m.writable = false
}

func (m *Mesh) VertexCount() int {
	if m.blob != nil {
		return m.blobVertices
	}
	return len(m.vertices)
}

func (m *Mesh) checkRead() error {
	if !m.readable {
		return core.InvalidOperationf("mesh %s is not readable", m.guid)
	}
	if m.blob != nil {
		return core.InvalidOperationf("mesh %s holds a packed vertex blob; per-channel data is unavailable", m.guid)
	}
	return nil
}

func (m *Mesh) checkWrite() error {
	if !m.writable {
		return core.InvalidOperationf("mesh %s is not writable", m.guid)
	}
	return nil
}

func (m *Mesh) Vertices() ([]math.Vec3, error) {
	if err := m.checkRead(); err != nil {
		return nil, err
	}
	return cloneSlice(m.vertices), nil
}

/**
 * @brief Replaces the positions. When the vertex count changes every other
 * channel, the indices and the submeshes are dropped since they would no
 * longer line up with the new vertices.
 */
func (m *Mesh) SetVertices(vertices []math.Vec3) error {
	if err := m.checkWrite(); err != nil {
		return err
	}
	if len(vertices) != m.VertexCount() {
		m.resetChannels()
		m.indices = nil
		m.submeshes = nil
	}
	m.dropBlob()
	m.vertices = cloneSlice(vertices)
	m.changed = true
	return nil
}

func (m *Mesh) resetChannels() {
	m.vec3s = [3][]math.Vec3{}
	m.colors = [MaxColorSets][]math.Vec4{}
	m.colors32 = [MaxColorSets][]Color32{}
	m.uvs = [MaxUVSets][]math.Vec2{}
	m.bones = [2][]math.Vec4{}
}

func (m *Mesh) dropBlob() {
	m.blob = nil
	m.blobLayout = nil
	m.blobVertices = 0
}

// Has reports whether the channel carries data. A colour channel counts when
// either its float or its byte form is set.
func (m *Mesh) Has(ch Channel) bool {
	if m.blob != nil {
		return m.blobLayout.Has(ch.Attribute())
	}
	switch {
	case ch <= ChannelBitangent:
		return m.vec3s[ch] != nil
	case ch <= ChannelColor3:
		set := ch - ChannelColor0
		return m.colors[set] != nil || m.colors32[set] != nil
	case ch <= ChannelTexCoord7:
		return m.uvs[ch-ChannelTexCoord0] != nil
	case ch <= ChannelBoneWeights:
		return m.bones[ch-ChannelBoneIndices] != nil
	}
	return false
}

// ClearChannel drops the data of one optional channel.
func (m *Mesh) ClearChannel(ch Channel) error {
	if err := m.checkWrite(); err != nil {
		return err
	}
	switch {
	case ch <= ChannelBitangent:
		m.vec3s[ch] = nil
	case ch <= ChannelColor3:
		m.colors[ch-ChannelColor0] = nil
		m.colors32[ch-ChannelColor0] = nil
	case ch <= ChannelTexCoord7:
		m.uvs[ch-ChannelTexCoord0] = nil
	case ch <= ChannelBoneWeights:
		m.bones[ch-ChannelBoneIndices] = nil
	default:
		return core.InvalidArgumentf("unknown channel %d", ch)
	}
	m.changed = true
	return nil
}

// setChannel validates and stores one optional channel.
func setChannel[T any](m *Mesh, ch Channel, slot *[]T, value []T) error {
	if err := m.checkWrite(); err != nil {
		return err
	}
	if m.blob != nil {
		return core.InvalidOperationf("mesh %s holds a packed vertex blob; set vertices before %s", m.guid, ch)
	}
	if len(value) == 0 || len(value) != len(m.vertices) {
		return core.InvalidArgumentf("%s has %d entries, mesh %s has %d vertices", ch, len(value), m.guid, len(m.vertices))
	}
	*slot = cloneSlice(value)
	m.changed = true
	return nil
}

func getChannel[T any](m *Mesh, slot []T) ([]T, error) {
	if err := m.checkRead(); err != nil {
		return nil, err
	}
	return cloneSlice(slot), nil
}

func checkSet(kind string, set, max int) error {
	if set < 0 || set >= max {
		return core.InvalidArgumentf("%s set %d out of range [0,%d)", kind, set, max)
	}
	return nil
}

func (m *Mesh) Normals() ([]math.Vec3, error) { return getChannel(m, m.vec3s[ChannelNormal]) }
func (m *Mesh) Tangents() ([]math.Vec3, error) { return getChannel(m, m.vec3s[ChannelTangent]) }
func (m *Mesh) Bitangents() ([]math.Vec3, error) { return getChannel(m, m.vec3s[ChannelBitangent]) }

func (m *Mesh) SetNormals(v []math.Vec3) error {
	return setChannel(m, ChannelNormal, &m.vec3s[ChannelNormal], v)
}

func (m *Mesh) SetTangents(v []math.Vec3) error {
	return setChannel(m, ChannelTangent, &m.vec3s[ChannelTangent], v)
}

func (m *Mesh) SetBitangents(v []math.Vec3) error {
	return setChannel(m, ChannelBitangent, &m.vec3s[ChannelBitangent], v)
}

func (m *Mesh) Colors(set int) ([]math.Vec4, error) {
	if err := checkSet("colour", set, MaxColorSets); err != nil {
		return nil, err
	}
	return getChannel(m, m.colors[set])
}

// SetColors stores float colours. A set that already holds byte colours is rejected.
func (m *Mesh) SetColors(set int, v []math.Vec4) error {
	if err := checkSet("colour", set, MaxColorSets); err != nil {
		return err
	}
	if m.colors32[set] != nil {
		return core.InvalidOperationf("colour set %d of mesh %s already holds byte colours", set, m.guid)
	}
	return setChannel(m, ColorChannel(set), &m.colors[set], v)
}

func (m *Mesh) Colors32(set int) ([]Color32, error) {
	if err := checkSet("colour", set, MaxColorSets); err != nil {
		return nil, err
	}
	return getChannel(m, m.colors32[set])
}

// SetColors32 stores byte colours. A set that already holds float colours is rejected.
func (m *Mesh) SetColors32(set int, v []Color32) error {
	if err := checkSet("colour", set, MaxColorSets); err != nil {
		return err
	}
	if m.colors[set] != nil {
		return core.InvalidOperationf("colour set %d of mesh %s already holds float colours", set, m.guid)
	}
	return setChannel(m, ColorChannel(set), &m.colors32[set], v)
}

func (m *Mesh) UV(set int) ([]math.Vec2, error) {
	if err := checkSet("uv", set, MaxUVSets); err != nil {
		return nil, err
	}
	return getChannel(m, m.uvs[set])
}

func (m *Mesh) SetUV(set int, v []math.Vec2) error {
	if err := checkSet("uv", set, MaxUVSets); err != nil {
		return err
	}
	return setChannel(m, TexCoordChannel(set), &m.uvs[set], v)
}

func (m *Mesh) BoneIndices() ([]math.Vec4, error) { return getChannel(m, m.bones[0]) }
func (m *Mesh) BoneWeights() ([]math.Vec4, error) { return getChannel(m, m.bones[1]) }

func (m *Mesh) SetBoneIndices(v []math.Vec4) error {
	return setChannel(m, ChannelBoneIndices, &m.bones[0], v)
}

func (m *Mesh) SetBoneWeights(v []math.Vec4) error {
	return setChannel(m, ChannelBoneWeights, &m.bones[1], v)
}

// IsSkinned reports whether bone data is present.
func (m *Mesh) IsSkinned() bool {
	return m.Has(ChannelBoneIndices) || m.Has(ChannelBoneWeights)
}

func (m *Mesh) Indices() ([]uint32, error) {
	if !m.readable {
		return nil, core.InvalidOperationf("mesh %s is not readable", m.guid)
	}
	return cloneSlice(m.indices), nil
}

func (m *Mesh) IndexCount() int {
	return len(m.indices)
}

/**
 * @brief Replaces the indices and topology. Every index must address an
 * existing vertex. Submeshes are dropped.
 */
func (m *Mesh) SetIndices(indices []uint32, topology metadata.Topology) error {
	if err := m.checkWrite(); err != nil {
		return err
	}
	n := uint32(m.VertexCount())
	for i, idx := range indices {
		if idx >= n {
			return core.InvalidArgumentf("index %d references vertex %d, mesh %s has %d vertices", i, idx, m.guid, n)
		}
	}
	m.indices = cloneSlice(indices)
	m.topology = topology
	m.submeshes = nil
	m.changed = true
	return nil
}

func (m *Mesh) Topology() metadata.Topology { return m.topology }
func (m *Mesh) IndexFormat() metadata.IndexFormat { return m.indexFormat }

func (m *Mesh) SetIndexFormat(f metadata.IndexFormat) error {
	if err := m.checkWrite(); err != nil {
		return err
	}
	if f != m.indexFormat {
		m.indexFormat = f
		m.changed = true
	}
	return nil
}

func (m *Mesh) Submeshes() []Submesh {
	return cloneSlice(m.submeshes)
}

/**
 * @brief Appends a submesh. Ranges outside the current vertex or index data
 * are ignored with a warning and false is returned.
 */
func (m *Mesh) AddSubmesh(s Submesh) bool {
	if !m.writable {
		core.LogWarn("AddSubmesh on read-only mesh %s ignored", m.guid)
		return false
	}
	if uint64(s.StartVertex)+uint64(s.VertexCount) > uint64(m.VertexCount()) ||
		uint64(s.StartIndex)+uint64(s.IndexCount) > uint64(len(m.indices)) {
		core.LogWarn("submesh %+v is outside mesh %s (%d vertices, %d indices), ignored",
			s, m.guid, m.VertexCount(), len(m.indices))
		return false
	}
	m.submeshes = append(m.submeshes, s)
	return true
}

func (m *Mesh) ClearSubmeshes() {
	m.submeshes = nil
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
