package systems

import (
	"encoding/binary"
	gomath "math"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// instanceMatrixSize is the byte size of one world matrix in an instance buffer.
const instanceMatrixSize = 64

// Groups unused for this many frames release their instance buffer.
const groupIdleFrames = 120

type groupKey struct {
	mesh     uint64
	material uint64
	lighting metadata.LightingMode
	submesh  int
}

type instanceGroup struct {
	key       groupKey
	renderer  *MeshRenderer
	material  *metadata.Material
	matrices  []math.Mat4
	count     int
	lastFrame uint64

	instanceBuffer metadata.ResourceHandle
	instanceBytes  int
	// contents of the last instance upload
	instanceData []byte
}

/**
 * @brief Draws mesh renderers in three stages per frame. Preprocess refreshes
 * world bounds and drops renderers that cannot be drawn, Process buckets the
 * visible ones by mesh, material, lighting and submesh, and Submit issues one
 * instanced draw per bucket with more than one member, or plain draws otherwise.
 */
type MeshRenderSystem struct {
	renderer *renderer.Renderer
	metrics  *core.Metrics

	// Cull, when set, is asked whether a world-space box is visible.
	Cull func(bounds math.Extents3D) bool
	// ViewProjection is applied after each world matrix. Identity by default.
	ViewProjection math.Mat4

	frame   uint64
	visible []*MeshRenderer
	groups  map[groupKey]*instanceGroup
	order   []*instanceGroup
	scratch []byte
}

func NewMeshRenderSystem(r *renderer.Renderer, metrics *core.Metrics) (*MeshRenderSystem, error) {
	if r == nil {
		return nil, core.ErrBackendNotInitialized
	}
	if metrics == nil {
		metrics = core.NewMetrics()
	}
	return &MeshRenderSystem{
		renderer: r,
		metrics:  metrics,
		groups:   make(map[groupKey]*instanceGroup),

		ViewProjection: math.NewMat4Identity(),
	}, nil
}

func (s *MeshRenderSystem) Metrics() *core.Metrics {
	return s.metrics
}

// Preprocess resets the frame counters, updates world bounds from the last
// computed mesh bounds and collects the renderers that can be drawn.
func (s *MeshRenderSystem) Preprocess(renderers []*MeshRenderer) {
	s.metrics.ResetRenderCounters()
	s.visible = s.visible[:0]
	for _, mr := range renderers {
		if mr == nil || !mr.Enabled || mr.Mesh == nil {
			continue
		}
		mr.visible = false
		if !mr.materialsValid() {
			s.metrics.Render.SkippedEntities++
			core.LogDebug("mesh %s skipped: %d materials for %d draws", mr.Mesh.Guid(), len(mr.Materials), mr.drawCount())
			continue
		}
		mr.worldBounds = mr.Mesh.Bounds().Transform(mr.Transform.GetWorld())
		if s.Cull != nil && !mr.worldBounds.IsEmpty() && !s.Cull(mr.worldBounds) {
			continue
		}
		mr.visible = true
		s.visible = append(s.visible, mr)
	}
}

// Process groups the visible renderers. Matrix slices of every group are
// resized to the number of members gathered this frame.
func (s *MeshRenderSystem) Process() {
	s.frame++
	for _, g := range s.groups {
		g.count = 0
	}

	for _, mr := range s.visible {
		world := mr.Transform.GetWorld()
		meshHash := metadata.HashString(mr.Mesh.Guid())
		for sub := 0; sub < mr.drawCount(); sub++ {
			mat := mr.Materials[sub]
			key := groupKey{mesh: meshHash, material: mat.Hash(), lighting: mat.Lighting, submesh: sub}
			g, ok := s.groups[key]
			if !ok {
				g = &instanceGroup{key: key, instanceBuffer: metadata.InvalidHandle}
				s.groups[key] = g
			}
			g.renderer = mr
			g.material = mat
			if g.count < len(g.matrices) {
				g.matrices[g.count] = world
			} else {
				g.matrices = append(g.matrices, world)
			}
			g.count++
			g.lastFrame = s.frame
		}
	}

	s.order = s.order[:0]
	for key, g := range s.groups {
		g.matrices = g.matrices[:g.count]
		if g.count > 0 {
			s.order = append(s.order, g)
			continue
		}
		if s.frame-g.lastFrame > groupIdleFrames {
			s.releaseGroup(g)
			delete(s.groups, key)
		}
	}
	// Sorting by material then lighting keeps state changes to a minimum.
	slices.SortFunc(s.order, func(a, b *instanceGroup) int {
		switch {
		case a.key.material != b.key.material:
			return compare(a.key.material, b.key.material)
		case a.key.lighting != b.key.lighting:
			return compare(a.key.lighting, b.key.lighting)
		case a.key.mesh != b.key.mesh:
			return compare(a.key.mesh, b.key.mesh)
		}
		return compare(a.key.submesh, b.key.submesh)
	})
}

func compare[T uint64 | int | metadata.LightingMode](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Groups returns the number of draw groups built by the last Process.
func (s *MeshRenderSystem) Groups() int {
	return len(s.order)
}

/**
 * @brief Records the draws of the processed groups into the open command.
 * Bound state is discarded whenever the material or the lighting mode
 * changes between groups.
 */
func (s *MeshRenderSystem) Submit(pass *metadata.RenderPass) {
	backend := s.renderer.Backend()
	counters := &s.metrics.Render

	bound := false
	var lastMaterial uint64
	var lastLighting metadata.LightingMode
	for _, g := range s.order {
		if bound && (g.key.material != lastMaterial || g.key.lighting != lastLighting) {
			backend.DiscardState()
			bound = false
		}

		mesh := g.renderer.Mesh
		if !mesh.SetActive(g.key.submesh) {
			core.LogWarn("mesh %s submesh %d cannot be drawn, skipping %d instances", mesh.Guid(), g.key.submesh, len(g.matrices))
			continue
		}
		state := mesh.ActiveState()
		applyMaterial(&state, g.material)
		primitives := uint64(state.Topology.PrimitiveCount(state.Range.IndexCount))

		if len(g.matrices) > 1 {
			if !s.prepareInstances(g) {
				core.LogError("failed to build the instance buffer for mesh %s, skipping %d instances", mesh.Guid(), len(g.matrices))
				backend.DiscardState()
				bound = false
				counters.DiscardedGroups++
				continue
			}
			// Instance matrices carry the world transform.
			state.World = s.ViewProjection
			state.InstanceBuffer = g.instanceBuffer
			state.InstanceCount = uint32(len(g.matrices))
			if backend.Render(pass, &state) {
				counters.DrawCalls++
				counters.InstancedDraws++
				counters.Instances += state.InstanceCount
				counters.Triangles += primitives * uint64(state.InstanceCount)
				bound = true
			}
		} else {
			state.World = g.matrices[0].Mul(s.ViewProjection)
			if backend.Render(pass, &state) {
				counters.DrawCalls++
				counters.Triangles += primitives
				bound = true
			}
		}
		lastMaterial, lastLighting = g.key.material, g.key.lighting
	}
}

func applyMaterial(state *metadata.RenderState, m *metadata.Material) {
	state.Blend = m.Blend
	state.Cull = m.Cull
	state.Depth = m.Depth
	state.Lighting = m.Lighting
	state.MaterialHash = m.Hash()
	state.DiffuseColour = m.DiffuseColour
	state.DiffuseTexture = m.DiffuseTexture
}

// prepareInstances writes the group's matrices into its instance buffer. The
// buffer is sized to the next power of two so small changes in the group size
// update it in place; in-place updates copy only the changed words of the
// matrices being drawn.
func (s *MeshRenderSystem) prepareInstances(g *instanceGroup) bool {
	capacity := 1
	for capacity < len(g.matrices) {
		capacity <<= 1
	}
	size := capacity * instanceMatrixSize
	if cap(s.scratch) < size {
		s.scratch = make([]byte, size)
	}
	data := s.scratch[:size]
	for i := range data {
		data[i] = 0
	}
	for i, m := range g.matrices {
		off := i * instanceMatrixSize
		for j, f := range m.Data {
			binary.LittleEndian.PutUint32(data[off+j*4:], gomath.Float32bits(f))
		}
	}

	backend := s.renderer.Backend()
	if g.instanceBuffer.Valid && g.instanceBytes == size {
		live := len(g.matrices) * instanceMatrixSize
		ranges := metadata.ChangedRanges(g.instanceData[:live], data[:live])
		if len(ranges) == 0 {
			return true
		}
		if backend.UpdateVertexBuffer(g.instanceBuffer, data, ranges...) {
			// The tail past live was not copied and keeps its old contents.
			copy(g.instanceData[:live], data[:live])
			return true
		}
	}
	s.releaseGroup(g)
	h := backend.CreateVertexBuffer(data, metadata.ResourceFlagInstance|metadata.ResourceFlagDynamic)
	if !h.Valid {
		return false
	}
	g.instanceBuffer, g.instanceBytes = h, size
	g.instanceData = append(g.instanceData[:0], data...)
	return true
}

func (s *MeshRenderSystem) releaseGroup(g *instanceGroup) {
	if g.instanceBuffer.Valid {
		s.renderer.Backend().DestroyVertexBuffer(g.instanceBuffer)
	}
	g.instanceBuffer = metadata.InvalidHandle
	g.instanceBytes = 0
	g.instanceData = nil
}

func (s *MeshRenderSystem) Shutdown() error {
	for key, g := range s.groups {
		s.releaseGroup(g)
		delete(s.groups, key)
	}
	s.order = nil
	s.visible = nil
	return nil
}
