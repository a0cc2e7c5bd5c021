package systems

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
)

type combineKey struct {
	signature string
	topology  metadata.Topology
	lighting  metadata.LightingMode
	material  uint64
}

/**
 * @brief Merges static renderers sharing channel signature, topology,
 * lighting and material into one mesh per bucket. Each MeshCombine is merged
 * once; afterwards only its bounds are kept up to date, and only when the
 * root transform changed.
 */
type MeshCombineSystem struct {
	renderer *renderer.Renderer

	boundsUpdates uint64
}

func NewMeshCombineSystem(r *renderer.Renderer) *MeshCombineSystem {
	return &MeshCombineSystem{renderer: r}
}

// BoundsUpdates counts how often combined bounds were recomputed.
func (s *MeshCombineSystem) BoundsUpdates() uint64 {
	return s.boundsUpdates
}

func (s *MeshCombineSystem) Process(combines []*MeshCombine) {
	for _, mc := range combines {
		if !mc.processed {
			s.combine(mc)
		}
		s.updateBounds(mc)
	}
}

// eligible reports whether mr can be merged with others.
func eligible(mr *MeshRenderer) bool {
	if mr == nil || !mr.Enabled || mr.Mesh == nil || mr.Transform == nil {
		return false
	}
	m := mr.Mesh
	if len(mr.Materials) != 1 || mr.Materials[0] == nil {
		return false
	}
	if len(m.Submeshes()) > 0 || m.IsSkinned() || m.IsPacked() || !m.IsReadable() || m.IsDynamic() {
		return false
	}
	if m.VertexCount() == 0 || m.IndexCount() == 0 {
		return false
	}
	t := m.Topology()
	return t == metadata.TopologyTriangles || t == metadata.TopologyLines
}

func (s *MeshCombineSystem) combine(mc *MeshCombine) {
	mc.processed = true

	rootInverse, ok := mc.Root.GetWorld().Inverse()
	if !ok {
		core.LogError("combine root transform is not invertible, nothing merged")
		return
	}

	var keys []combineKey
	buckets := make(map[combineKey][]*MeshRenderer)
	for _, mr := range mc.Renderers {
		if !eligible(mr) {
			continue
		}
		mat := mr.Materials[0]
		key := combineKey{
			signature: mr.Mesh.ChannelSignature(),
			topology:  mr.Mesh.Topology(),
			lighting:  mat.Lighting,
			material:  mat.Hash(),
		}
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], mr)
	}

	merged := 0
	for _, key := range keys {
		sources := buckets[key]
		if len(sources) < 2 {
			continue
		}
		parts := make([]resources.MeshPart, len(sources))
		for i, mr := range sources {
			parts[i] = resources.MeshPart{
				Mesh:      mr.Mesh,
				Transform: mr.Transform.GetWorld().Mul(rootInverse),
			}
		}
		mesh, err := resources.CombineMeshes(s.renderer, "", parts)
		if err != nil {
			core.LogError("combining %d meshes (%s): %s", len(sources), key.signature, err)
			continue
		}
		mc.combined = append(mc.combined, NewMeshRenderer(mesh, mc.Root, sources[0].Materials[0]))
		for _, mr := range sources {
			if mc.DestroySources {
				mr.Mesh.Destroy()
				mr.Enabled = false
			} else if mc.DisableSources {
				mr.Enabled = false
			}
		}
		merged += len(sources)
	}
	core.LogInfo("combined %d renderers into %d meshes", merged, len(mc.combined))
}

func (s *MeshCombineSystem) updateBounds(mc *MeshCombine) {
	version := mc.Root.Version()
	if mc.boundsValid && version == mc.boundsVersion {
		return
	}
	world := mc.Root.GetWorld()
	bounds := math.NewExtentsEmpty()
	for _, mr := range mc.combined {
		bounds = bounds.Union(mr.Mesh.Bounds().Transform(world))
	}
	mc.bounds = bounds
	mc.boundsVersion = version
	mc.boundsValid = true
	s.boundsUpdates++
}
