package testbed

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
	"github.com/spaghettifunk/lumen/engine/systems"
)

const (
	cubeGrid       = 8
	cameraDistance = 24
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	cubes  []*systems.MeshRenderer
	sphere *systems.MeshRenderer
	meshes []*resources.Mesh
	// Seconds since the first update.
	elapsed float64
}

func NewTestGame(configPath string, maxFrames uint64) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:            "Lumen Testbed",
				ConfigPath:      configPath,
				MaxFrames:       maxFrames,
				TargetFrameRate: 60,
			},
			State: &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// Initialize fills the scene: a floor plane, a grid of instanced cubes, a
// sphere and a row of quads merged by a MeshCombine.
func (g *TestGame) Initialize() error {
	core.LogInfo("initializing testbed...")
	sm := g.SystemManager
	st := g.state()
	r := sm.RendererSystem.Renderer()

	newMesh := func(name string) (*resources.Mesh, error) {
		m, err := resources.NewBuiltinMesh(r, name)
		if err != nil {
			return nil, err
		}
		st.meshes = append(st.meshes, m)
		return m, nil
	}

	floorMat := &metadata.Material{
		Name:           "floor",
		DiffuseColour:  math.NewVec4(0.6, 0.6, 0.6, 1),
		DiffuseTexture: sm.TextureSystem.Default().Handle,
	}
	cubeMat := &metadata.Material{Name: "cube", DiffuseColour: math.NewVec4(0.9, 0.3, 0.2, 1)}
	glassMat := &metadata.Material{
		Name:          "glass",
		Blend:         metadata.BlendModeAlpha,
		Depth:         metadata.DepthModeTest,
		DiffuseColour: math.NewVec4(0.2, 0.5, 0.9, 0.5),
	}
	for _, m := range []*metadata.Material{floorMat, cubeMat, glassMat} {
		if err := sm.MaterialSystem.Register(m); err != nil {
			return err
		}
	}

	plane, err := newMesh(resources.BuiltinPlane)
	if err != nil {
		return err
	}
	sm.Scene.AddRenderer(systems.NewMeshRenderer(plane, math.TransformCreate(), floorMat))

	cube, err := newMesh(resources.BuiltinCube)
	if err != nil {
		return err
	}
	for x := 0; x < cubeGrid; x++ {
		for z := 0; z < cubeGrid; z++ {
			t := math.TransformFromPosition(math.NewVec3(float32(x)*2-cubeGrid, 0.5, float32(z)*2-cubeGrid))
			mr := systems.NewMeshRenderer(cube, t, cubeMat)
			sm.Scene.AddRenderer(mr)
			st.cubes = append(st.cubes, mr)
		}
	}

	sphere, err := newMesh(resources.BuiltinSphere)
	if err != nil {
		return err
	}
	st.sphere = systems.NewMeshRenderer(sphere, math.TransformFromPosition(math.NewVec3(0, 3, 0)), glassMat)
	sm.Scene.AddRenderer(st.sphere)

	quad, err := newMesh(resources.BuiltinQuad)
	if err != nil {
		return err
	}
	root := math.TransformFromPosition(math.NewVec3(0, 0, -12))
	var row []*systems.MeshRenderer
	for i := 0; i < 6; i++ {
		t := math.TransformFromPosition(math.NewVec3(float32(i)*1.5-4, 1, 0))
		t.SetParent(root)
		row = append(row, systems.NewMeshRenderer(quad, t, floorMat))
	}
	sm.Scene.AddCombine(systems.NewMeshCombine(root, row...))

	g.orbitCamera()
	return nil
}

// orbitCamera circles the scene once every 40 seconds.
func (g *TestGame) orbitCamera() {
	camera := g.SystemManager.RendererSystem.Camera
	if camera == nil {
		return
	}
	angle := float32(g.state().elapsed) * 2 * math32.Pi / 40
	camera.SetPosition(math.NewVec3(cameraDistance*math32.Sin(angle), 8, cameraDistance*math32.Cos(angle)))
	camera.LookAt(math.NewVec3Zero())
}

func (g *TestGame) Update(deltaTime float64) error {
	st := g.state()
	st.elapsed += deltaTime
	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(0.5*deltaTime), false)
	for _, c := range st.cubes {
		c.Transform.Rotate(rotation)
	}
	st.sphere.Transform.SetPosition(math.NewVec3(0, 3+math32.Sin(float32(st.elapsed)), 0))
	g.orbitCamera()
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	if g.SystemManager.RendererSystem.FrameNumber%120 == 0 {
		c := g.SystemManager.RendererSystem.Metrics().Render
		core.LogDebug("frame %d: %d draws (%d instanced, %d instances), %d triangles",
			g.SystemManager.RendererSystem.FrameNumber, c.DrawCalls, c.InstancedDraws, c.Instances, c.Triangles)
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	st := g.state()
	g.SystemManager.Scene.Clear()
	for _, m := range st.meshes {
		m.Destroy()
	}
	st.meshes = nil
	return nil
}
