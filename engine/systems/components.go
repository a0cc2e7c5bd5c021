package systems

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
)

/**
 * @brief Draws a mesh with one material per submesh (one material in total
 * when the mesh has no submeshes). The component does not own the mesh.
 */
type MeshRenderer struct {
	Mesh      *resources.Mesh
	Materials []*metadata.Material
	Transform *math.Transform
	Enabled   bool

	worldBounds math.Extents3D
	visible     bool
}

func NewMeshRenderer(mesh *resources.Mesh, transform *math.Transform, materials ...*metadata.Material) *MeshRenderer {
	if transform == nil {
		transform = math.TransformCreate()
	}
	return &MeshRenderer{
		Mesh:        mesh,
		Materials:   materials,
		Transform:   transform,
		Enabled:     true,
		worldBounds: math.NewExtentsEmpty(),
	}
}

// WorldBounds is the mesh bounds in world space as of the last Preprocess.
func (mr *MeshRenderer) WorldBounds() math.Extents3D {
	return mr.worldBounds
}

func (mr *MeshRenderer) Visible() bool {
	return mr.visible
}

// drawCount is how many submesh draws the renderer issues.
func (mr *MeshRenderer) drawCount() int {
	if n := len(mr.Mesh.Submeshes()); n > 0 {
		return n
	}
	return 1
}

// materialsValid reports whether every submesh has a material.
func (mr *MeshRenderer) materialsValid() bool {
	if len(mr.Materials) < mr.drawCount() {
		return false
	}
	for _, m := range mr.Materials[:mr.drawCount()] {
		if m == nil {
			return false
		}
	}
	return true
}

/**
 * @brief Merges the eligible Renderers under Root into combined meshes the
 * first time MeshCombineSystem processes it. Combined vertices live in the
 * local space of Root.
 */
type MeshCombine struct {
	Root      *math.Transform
	Renderers []*MeshRenderer
	// DisableSources turns off renderers that were merged.
	DisableSources bool
	// DestroySources also releases the GPU buffers of merged meshes.
	DestroySources bool

	processed     bool
	combined      []*MeshRenderer
	bounds        math.Extents3D
	boundsVersion uint64
	boundsValid   bool
}

func NewMeshCombine(root *math.Transform, renderers ...*MeshRenderer) *MeshCombine {
	if root == nil {
		root = math.TransformCreate()
	}
	return &MeshCombine{
		Root:           root,
		Renderers:      renderers,
		DisableSources: true,
		bounds:         math.NewExtentsEmpty(),
	}
}

func (mc *MeshCombine) Processed() bool {
	return mc.processed
}

// Combined returns the renderers created for the merged meshes.
func (mc *MeshCombine) Combined() []*MeshRenderer {
	return mc.combined
}

// Bounds is the world-space box of every combined mesh.
func (mc *MeshCombine) Bounds() math.Extents3D {
	return mc.bounds
}
