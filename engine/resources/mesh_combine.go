package resources

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// MeshPart is one source of CombineMeshes and the matrix taking its vertices
// into the combined mesh's space.
type MeshPart struct {
	Mesh      *Mesh
	Transform math.Mat4
}

/**
 * @brief Concatenates parts into one new mesh. Every part must carry the same
 * channel signature and the same list topology. Positions are transformed by
 * the part matrix, normals by its normal matrix, tangents and bitangents as
 * directions. Float and byte colour sets are merged as floats when the parts
 * disagree.
 */
func CombineMeshes(r *renderer.Renderer, guid string, parts []MeshPart) (*Mesh, error) {
	if len(parts) == 0 {
		return nil, core.InvalidArgumentf("CombineMeshes needs at least one part")
	}
	first := parts[0].Mesh
	signature := first.ChannelSignature()
	topology := first.topology
	if topology != metadata.TopologyTriangles && topology != metadata.TopologyLines {
		return nil, core.InvalidOperationf("cannot concatenate %s meshes", topology)
	}

	total := 0
	for i, p := range parts {
		if err := p.Mesh.checkRead(); err != nil {
			return nil, err
		}
		if p.Mesh.ChannelSignature() != signature || p.Mesh.topology != topology {
			return nil, core.InvalidArgumentf("part %d (%s) does not match signature %s/%s", i, p.Mesh.guid, signature, topology)
		}
		total += len(p.Mesh.vertices)
	}

	out, err := NewMesh(r, guid, DefaultMeshFlags)
	if err != nil {
		return nil, err
	}
	out.topology = topology
	if total > maxUInt16Index+1 {
		out.indexFormat = metadata.IndexFormatUInt32
	}
	out.vertices = make([]math.Vec3, 0, total)

	for _, p := range parts {
		src := p.Mesh
		base := uint32(len(out.vertices))
		normalMatrix := p.Transform.NormalMatrix()
		for _, v := range src.vertices {
			out.vertices = append(out.vertices, v.Transform(p.Transform))
		}
		for ch := ChannelNormal; ch <= ChannelBitangent; ch++ {
			if src.vec3s[ch] == nil {
				continue
			}
			m := p.Transform
			if ch == ChannelNormal {
				m = normalMatrix
			}
			for _, n := range src.vec3s[ch] {
				out.vec3s[ch] = append(out.vec3s[ch], n.TransformDirection(m).Normalized())
			}
		}
		for set := 0; set < MaxUVSets; set++ {
			out.uvs[set] = append(out.uvs[set], src.uvs[set]...)
		}
		for i := range src.bones {
			out.bones[i] = append(out.bones[i], src.bones[i]...)
		}
		for _, idx := range src.indices {
			out.indices = append(out.indices, base+idx)
		}
	}
	for set := 0; set < MaxColorSets; set++ {
		combineColours(out, parts, set)
	}

	out.changed = true
	out.UpdateBounds()
	return out, nil
}

func combineColours(out *Mesh, parts []MeshPart, set int) {
	float := false
	bytes := false
	for _, p := range parts {
		float = float || p.Mesh.colors[set] != nil
		bytes = bytes || p.Mesh.colors32[set] != nil
	}
	switch {
	case float:
		for _, p := range parts {
			if c := p.Mesh.colors[set]; c != nil {
				out.colors[set] = append(out.colors[set], c...)
				continue
			}
			for _, c := range p.Mesh.colors32[set] {
				out.colors[set] = append(out.colors[set], c.ToVec4())
			}
		}
	case bytes:
		for _, p := range parts {
			out.colors32[set] = append(out.colors32[set], p.Mesh.colors32[set]...)
		}
	}
}
