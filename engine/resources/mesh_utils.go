package resources

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// UpdateBounds recomputes the bounding box from the positions.
func (m *Mesh) UpdateBounds() math.Extents3D {
	m.bounds = math.ExtentsFromPoints(m.positions())
	return m.bounds
}

// Bounds returns the box computed by the last UpdateBounds.
func (m *Mesh) Bounds() math.Extents3D {
	return m.bounds
}

// SubmeshTriangleCount returns the primitives drawn by a submesh. A mesh
// without submeshes reports its whole index range as submesh 0.
func (m *Mesh) SubmeshTriangleCount(i int) (int, error) {
	s, ok := m.submeshRange(i)
	if !ok {
		return 0, core.InvalidArgumentf("mesh %s has no submesh %d", m.guid, i)
	}
	return int(s.Topology.PrimitiveCount(s.IndexCount)), nil
}

/**
 * @brief Deep-copies the CPU data into a new writable mesh sharing the
 * renderer. GPU buffers are not shared; the copy uploads its own.
 */
func (m *Mesh) Clone(guid string) (*Mesh, error) {
	flags := MeshReadable | MeshWritable
	if m.dynamic {
		flags |= MeshDynamic
	}
	c, err := NewMesh(m.renderer, guid, flags)
	if err != nil {
		return nil, err
	}
	c.vertices = cloneSlice(m.vertices)
	for i := range m.vec3s {
		c.vec3s[i] = cloneSlice(m.vec3s[i])
	}
	for i := range m.colors {
		c.colors[i] = cloneSlice(m.colors[i])
		c.colors32[i] = cloneSlice(m.colors32[i])
	}
	for i := range m.uvs {
		c.uvs[i] = cloneSlice(m.uvs[i])
	}
	for i := range m.bones {
		c.bones[i] = cloneSlice(m.bones[i])
	}
	c.indices = cloneSlice(m.indices)
	c.indexFormat = m.indexFormat
	c.topology = m.topology
	c.submeshes = cloneSlice(m.submeshes)
	c.blob = cloneSlice(m.blob)
	c.blobLayout = m.blobLayout
	c.blobVertices = m.blobVertices
	c.bounds = m.bounds
	c.changed = true
	return c, nil
}

/**
 * @brief Merges vertices whose every channel is identical and remaps the
 * indices. Returns how many vertices were removed. Meshes with submeshes
 * are rejected since their vertex ranges would no longer hold.
 */
func (m *Mesh) DeduplicateVertices() (int, error) {
	if err := m.checkWrite(); err != nil {
		return 0, err
	}
	if err := m.checkRead(); err != nil {
		return 0, err
	}
	if len(m.submeshes) > 0 {
		return 0, core.InvalidOperationf("mesh %s has submeshes; clear them before deduplicating", m.guid)
	}
	layout, err := m.GetVertexLayout()
	if err != nil {
		return 0, err
	}
	packed, err := m.MakeVertexDataBlob(layout)
	if err != nil {
		return 0, err
	}

	stride := int(layout.Stride)
	n := len(m.vertices)
	seen := make(map[string]uint32, n)
	remap := make([]uint32, n)
	keep := make([]int, 0, n)
	for v := 0; v < n; v++ {
		key := string(packed[v*stride : (v+1)*stride])
		if idx, ok := seen[key]; ok {
			remap[v] = idx
			continue
		}
		idx := uint32(len(keep))
		seen[key] = idx
		remap[v] = idx
		keep = append(keep, v)
	}
	removed := n - len(keep)
	if removed == 0 {
		return 0, nil
	}

	m.vertices = pick(m.vertices, keep)
	for i := range m.vec3s {
		m.vec3s[i] = pick(m.vec3s[i], keep)
	}
	for i := range m.colors {
		m.colors[i] = pick(m.colors[i], keep)
		m.colors32[i] = pick(m.colors32[i], keep)
	}
	for i := range m.uvs {
		m.uvs[i] = pick(m.uvs[i], keep)
	}
	for i := range m.bones {
		m.bones[i] = pick(m.bones[i], keep)
	}
	for i, idx := range m.indices {
		m.indices[i] = remap[idx]
	}
	m.changed = true
	core.LogDebug("mesh %s: merged %d duplicate vertices", m.guid, removed)
	return removed, nil
}

func pick[T any](s []T, keep []int) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(keep))
	for i, k := range keep {
		out[i] = s[k]
	}
	return out
}

func (m *Mesh) checkTriangles(op string) error {
	if err := m.checkWrite(); err != nil {
		return err
	}
	if err := m.checkRead(); err != nil {
		return err
	}
	if m.topology != metadata.TopologyTriangles {
		return core.InvalidOperationf("%s needs a triangle list, mesh %s uses %s", op, m.guid, m.topology)
	}
	if len(m.vertices) == 0 || len(m.indices) == 0 {
		return core.InvalidOperationf("%s needs vertices and indices on mesh %s", op, m.guid)
	}
	if err := m.topology.ValidateIndexCount(len(m.indices)); err != nil {
		return errors.Wrapf(err, "%s on mesh %s", op, m.guid)
	}
	return nil
}

// RecalculateNormals regenerates the normal channel from the triangles.
func (m *Mesh) RecalculateNormals(smooth bool) error {
	if err := m.checkTriangles("RecalculateNormals"); err != nil {
		return err
	}
	normals, err := GenerateNormals(m.vertices, m.indices, smooth)
	if err != nil {
		return errors.Wrapf(err, "mesh %s", m.guid)
	}
	return m.SetNormals(normals)
}

// RecalculateTangents regenerates tangents and bitangents from the normals
// and the first UV set.
func (m *Mesh) RecalculateTangents() error {
	if err := m.checkTriangles("RecalculateTangents"); err != nil {
		return err
	}
	if !m.Has(ChannelNormal) || !m.Has(ChannelTexCoord0) {
		return core.InvalidOperationf("RecalculateTangents needs normals and UV set 0 on mesh %s", m.guid)
	}
	tangents, bitangents, err := GenerateTangents(m.vertices, m.vec3s[ChannelNormal], m.uvs[0], m.indices)
	if err != nil {
		return errors.Wrapf(err, "mesh %s", m.guid)
	}
	if err := m.SetTangents(tangents); err != nil {
		return err
	}
	return m.SetBitangents(bitangents)
}
