package resources

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// GeometryData is generated triangle-list geometry. Normals and UVs have one
// entry per position when present.
type GeometryData struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	UVs       []math.Vec2
	Indices   []uint32
}

/**
 * @brief Computes per-vertex normals for a triangle list by summing the
 * area-weighted face normals of every triangle touching a vertex. With smooth
 * set, vertices sharing a position also share the summed normal.
 */
func GenerateNormals(positions []math.Vec3, indices []uint32, smooth bool) ([]math.Vec3, error) {
	if err := checkTriangleList(len(positions), indices); err != nil {
		return nil, err
	}
	sums := make([]math.Vec3, len(positions))
	for i := 0; i < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := positions[i0], positions[i1], positions[i2]
		// The cross product length is twice the triangle area.
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		sums[i0] = sums[i0].Add(face)
		sums[i1] = sums[i1].Add(face)
		sums[i2] = sums[i2].Add(face)
	}

	if smooth {
		shared := make(map[math.Vec3]math.Vec3, len(positions))
		for i, p := range positions {
			shared[p] = shared[p].Add(sums[i])
		}
		for i, p := range positions {
			sums[i] = shared[p]
		}
	}

	normals := make([]math.Vec3, len(positions))
	for i, n := range sums {
		normals[i] = n.Normalized()
	}
	return normals, nil
}

/**
 * @brief Computes per-vertex tangents and bitangents from the UV gradients of
 * a triangle list. Tangents are orthogonalized against the normals; each
 * bitangent is cross(normal, tangent) flipped to follow the UV handedness.
 */
func GenerateTangents(positions, normals []math.Vec3, uvs []math.Vec2, indices []uint32) ([]math.Vec3, []math.Vec3, error) {
	if len(normals) != len(positions) || len(uvs) != len(positions) {
		return nil, nil, core.InvalidArgumentf("tangents need one normal and one uv per position, got %d positions, %d normals, %d uvs",
			len(positions), len(normals), len(uvs))
	}
	if err := checkTriangleList(len(positions), indices); err != nil {
		return nil, nil, err
	}
	tan := make([]math.Vec3, len(positions))
	bit := make([]math.Vec3, len(positions))
	for i := 0; i < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		e1 := positions[i1].Sub(positions[i0])
		e2 := positions[i2].Sub(positions[i0])
		d1 := uvs[i1].Sub(uvs[i0])
		d2 := uvs[i2].Sub(uvs[i0])

		det := d1.X*d2.Y - d2.X*d1.Y
		if math32.Abs(det) < math.K_FLOAT_EPSILON {
			continue
		}
		r := 1 / det
		t := e1.MulScalar(d2.Y).Sub(e2.MulScalar(d1.Y)).MulScalar(r)
		b := e2.MulScalar(d1.X).Sub(e1.MulScalar(d2.X)).MulScalar(r)
		for _, idx := range [3]uint32{i0, i1, i2} {
			tan[idx] = tan[idx].Add(t)
			bit[idx] = bit[idx].Add(b)
		}
	}

	tangents := make([]math.Vec3, len(positions))
	bitangents := make([]math.Vec3, len(positions))
	for i := range positions {
		n := normals[i]
		t := tan[i].Sub(n.MulScalar(n.Dot(tan[i]))).Normalized()
		if t.LengthSquared() == 0 {
			t = anyPerpendicular(n)
		}
		b := n.Cross(t)
		if b.Dot(bit[i]) < 0 {
			b = b.MulScalar(-1)
		}
		tangents[i] = t
		bitangents[i] = b
	}
	return tangents, bitangents, nil
}

// checkTriangleList validates a triangle list over vertexCount vertices.
func checkTriangleList(vertexCount int, indices []uint32) error {
	if len(indices)%3 != 0 {
		return core.InvalidArgumentf("triangle list needs a multiple of 3 indices, got %d", len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= vertexCount {
			return core.InvalidArgumentf("index %d at position %d is out of range for %d vertices", idx, i, vertexCount)
		}
	}
	return nil
}

func anyPerpendicular(n math.Vec3) math.Vec3 {
	axis := math.NewVec3(1, 0, 0)
	if math32.Abs(n.X) > 0.9 {
		axis = math.NewVec3(0, 1, 0)
	}
	return n.Cross(axis).Normalized()
}

// GenerateSphere builds a UV sphere centred on the origin.
func GenerateSphere(radius float32, rings, segments uint32) GeometryData {
	if radius <= 0 {
		core.LogWarn("sphere radius must be positive. Defaulting to one.")
		radius = 1
	}
	if rings < 2 {
		rings = 2
	}
	if segments < 3 {
		segments = 3
	}

	stride := segments + 1
	count := (rings + 1) * stride
	g := GeometryData{
		Positions: make([]math.Vec3, 0, count),
		Normals:   make([]math.Vec3, 0, count),
		UVs:       make([]math.Vec2, 0, count),
		Indices:   make([]uint32, 0, rings*segments*6),
	}
	for r := uint32(0); r <= rings; r++ {
		phi := math.K_PI * float32(r) / float32(rings)
		y := math32.Cos(phi)
		ringRadius := math32.Sin(phi)
		for s := uint32(0); s <= segments; s++ {
			theta := math.K_PI_2 * float32(s) / float32(segments)
			n := math.NewVec3(ringRadius*math32.Cos(theta), y, ringRadius*math32.Sin(theta))
			g.Positions = append(g.Positions, n.MulScalar(radius))
			g.Normals = append(g.Normals, n)
			g.UVs = append(g.UVs, math.NewVec2(float32(s)/float32(segments), float32(r)/float32(rings)))
		}
	}
	for r := uint32(0); r < rings; r++ {
		for s := uint32(0); s < segments; s++ {
			a := r*stride + s
			b := a + 1
			c := a + stride
			d := c + 1
			g.Indices = append(g.Indices, a, b, c, b, d, c)
		}
	}
	return g
}

/**
 * @brief Builds a segmented plane in the XY plane facing +Z. Every segment
 * gets its own four vertices; DeduplicateVertices can merge them later.
 */
func GeneratePlane(width, height float32, xSegments, ySegments uint32, tileX, tileY float32) GeometryData {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if xSegments < 1 {
		core.LogWarn("xSegments must be a positive number. Defaulting to one.")
		xSegments = 1
	}
	if ySegments < 1 {
		core.LogWarn("ySegments must be a positive number. Defaulting to one.")
		ySegments = 1
	}
	if tileX == 0 {
		tileX = 1.0
	}
	if tileY == 0 {
		tileY = 1.0
	}

	quads := xSegments * ySegments
	g := GeometryData{
		Positions: make([]math.Vec3, quads*4),
		Normals:   make([]math.Vec3, quads*4),
		UVs:       make([]math.Vec2, quads*4),
		Indices:   make([]uint32, quads*6),
	}
	segWidth := width / float32(xSegments)
	segHeight := height / float32(ySegments)
	halfWidth := width * 0.5
	halfHeight := height * 0.5
	up := math.NewVec3(0, 0, 1)
	for y := uint32(0); y < ySegments; y++ {
		for x := uint32(0); x < xSegments; x++ {
			minX := float32(x)*segWidth - halfWidth
			minY := float32(y)*segHeight - halfHeight
			maxX := minX + segWidth
			maxY := minY + segHeight
			minU := float32(x) / float32(xSegments) * tileX
			minV := float32(y) / float32(ySegments) * tileY
			maxU := float32(x+1) / float32(xSegments) * tileX
			maxV := float32(y+1) / float32(ySegments) * tileY

			vOffset := (y*xSegments + x) * 4
			g.Positions[vOffset+0] = math.NewVec3(minX, minY, 0)
			g.Positions[vOffset+1] = math.NewVec3(maxX, maxY, 0)
			g.Positions[vOffset+2] = math.NewVec3(minX, maxY, 0)
			g.Positions[vOffset+3] = math.NewVec3(maxX, minY, 0)
			g.UVs[vOffset+0] = math.NewVec2(minU, minV)
			g.UVs[vOffset+1] = math.NewVec2(maxU, maxV)
			g.UVs[vOffset+2] = math.NewVec2(minU, maxV)
			g.UVs[vOffset+3] = math.NewVec2(maxU, minV)
			for i := uint32(0); i < 4; i++ {
				g.Normals[vOffset+i] = up
			}

			iOffset := (y*xSegments + x) * 6
			g.Indices[iOffset+0] = vOffset + 0
			g.Indices[iOffset+1] = vOffset + 1
			g.Indices[iOffset+2] = vOffset + 2
			g.Indices[iOffset+3] = vOffset + 0
			g.Indices[iOffset+4] = vOffset + 3
			g.Indices[iOffset+5] = vOffset + 1
		}
	}
	return g
}

// cubeFaces lists normal, u and v per face with u x v == normal.
var cubeFaces = [6][3]math.Vec3{
	{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
	{{X: 0, Y: 0, Z: -1}, {X: -1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
	{{X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: -1}, {X: 0, Y: 1, Z: 0}},
	{{X: -1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 0}},
	{{X: 0, Y: 1, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: -1}},
	{{X: 0, Y: -1, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 1}},
}

// GenerateCube builds a box centred on the origin with four vertices per face.
func GenerateCube(width, height, depth, tileX, tileY float32) GeometryData {
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}
	if depth == 0 {
		depth = 1
	}
	if tileX == 0 {
		tileX = 1
	}
	if tileY == 0 {
		tileY = 1
	}
	half := math.NewVec3(width*0.5, height*0.5, depth*0.5)
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	g := GeometryData{
		Positions: make([]math.Vec3, 0, 24),
		Normals:   make([]math.Vec3, 0, 24),
		UVs:       make([]math.Vec2, 0, 24),
		Indices:   make([]uint32, 0, 36),
	}
	for _, face := range cubeFaces {
		n, u, v := face[0], face[1], face[2]
		base := uint32(len(g.Positions))
		for _, c := range corners {
			p := n.Add(u.MulScalar(c[0])).Add(v.MulScalar(c[1])).Mul(half)
			g.Positions = append(g.Positions, p)
			g.Normals = append(g.Normals, n)
			g.UVs = append(g.UVs, math.NewVec2((c[0]+1)*0.5*tileX, (c[1]+1)*0.5*tileY))
		}
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}

// GenerateQuad builds a single quad in the XY plane facing +Z.
func GenerateQuad(width, height float32) GeometryData {
	return GeneratePlane(width, height, 1, 1, 1, 1)
}

/**
 * @brief Replaces the mesh contents with g as a triangle list. 32-bit indices
 * are selected when the vertex count does not fit 16 bits.
 */
func (m *Mesh) SetGeometry(g GeometryData) error {
	if err := m.SetVertices(g.Positions); err != nil {
		return err
	}
	if len(g.Normals) > 0 {
		if err := m.SetNormals(g.Normals); err != nil {
			return err
		}
	}
	if len(g.UVs) > 0 {
		if err := m.SetUV(0, g.UVs); err != nil {
			return err
		}
	}
	format := metadata.IndexFormatUInt16
	if len(g.Positions) > maxUInt16Index+1 {
		format = metadata.IndexFormatUInt32
	}
	if err := m.SetIndexFormat(format); err != nil {
		return err
	}
	return m.SetIndices(g.Indices, metadata.TopologyTriangles)
}
