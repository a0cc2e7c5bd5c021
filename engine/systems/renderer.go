package systems

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const WorldRenderPassName = "Renderpass.Builtin.World"

/**
 * @brief Drives one frame: merges pending combines, runs the mesh render
 * stages and submits the recorded command.
 */
type RendererSystem struct {
	renderer *renderer.Renderer
	meshes   *MeshRenderSystem
	combines *MeshCombineSystem

	FrameNumber uint64
	WorldPass   *metadata.RenderPass
	// Camera, when set, transforms and culls the world pass.
	Camera *components.Camera
}

func NewRendererSystem(r *renderer.Renderer, metrics *core.Metrics) (*RendererSystem, error) {
	mrs, err := NewMeshRenderSystem(r, metrics)
	if err != nil {
		return nil, err
	}
	return &RendererSystem{
		renderer: r,
		meshes:   mrs,
		combines: NewMeshCombineSystem(r),
		WorldPass: &metadata.RenderPass{
			Name:        WorldRenderPassName,
			ClearColour: math.NewVec4(0, 0, 0.2, 1),
			ClearDepth:  1,
		},
	}, nil
}

func (rs *RendererSystem) Renderer() *renderer.Renderer {
	return rs.renderer
}

// Metrics returns the counters the mesh render stages fill every frame.
func (rs *RendererSystem) Metrics() *core.Metrics {
	return rs.meshes.Metrics()
}

func (rs *RendererSystem) MeshRenderSystem() *MeshRenderSystem {
	return rs.meshes
}

func (rs *RendererSystem) MeshCombineSystem() *MeshCombineSystem {
	return rs.combines
}

// DrawFrame renders scene into the world pass. A failed submit cancels the
// command so nothing half-recorded survives into the next frame.
func (rs *RendererSystem) DrawFrame(scene *Scene) error {
	rs.FrameNumber++

	rs.combines.Process(scene.Combines())
	if rs.Camera != nil {
		rs.meshes.ViewProjection = rs.Camera.ViewProjection()
		rs.meshes.Cull = rs.Camera.Visible
	}
	rs.meshes.Preprocess(scene.Renderers())
	rs.meshes.Process()

	backend := rs.renderer.Backend()
	if err := backend.BeginCommand(); err != nil {
		err = errors.Wrapf(err, "frame %d: begin command", rs.FrameNumber)
		core.LogError(err.Error())
		return err
	}
	rs.meshes.Submit(rs.WorldPass)
	if err := backend.SubmitCommand(); err != nil {
		backend.CancelCommand()
		err = errors.Wrapf(err, "frame %d: submit", rs.FrameNumber)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (rs *RendererSystem) Shutdown() error {
	return rs.meshes.Shutdown()
}
