package systems

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/assets/loaders"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
)

type SystemManagerConfig struct {
	Workers          int
	JobQueueSize     int
	MaxMaterialCount uint32
	MaxTextureCount  uint32
}

func DefaultSystemManagerConfig() *SystemManagerConfig {
	return &SystemManagerConfig{Workers: 1, JobQueueSize: 64, MaxMaterialCount: 1024, MaxTextureCount: 1024}
}

type SystemManager struct {
	JobSystem      *JobSystem
	MaterialSystem *MaterialSystem
	TextureSystem  *TextureSystem
	RendererSystem *RendererSystem
	Scene          *Scene

	renderer *renderer.Renderer
	assets   *assets.AssetManager
}

// NewSystemManager builds every system. am may be nil when nothing is loaded from disk.
func NewSystemManager(r *renderer.Renderer, metrics *core.Metrics, am *assets.AssetManager, config *SystemManagerConfig) (*SystemManager, error) {
	if config == nil {
		config = DefaultSystemManagerConfig()
	}
	js, err := NewJobSystem(config.Workers, config.JobQueueSize)
	if err != nil {
		return nil, err
	}
	ms, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount: config.MaxMaterialCount,
	})
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(TextureSystemConfig{MaxTextureCount: config.MaxTextureCount}, r, am, js)
	if err != nil {
		return nil, err
	}
	if err := ts.Initialize(); err != nil {
		return nil, err
	}
	ms.Default().DiffuseTexture = ts.Default().Handle
	rs, err := NewRendererSystem(r, metrics)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		JobSystem:      js,
		MaterialSystem: ms,
		TextureSystem:  ts,
		RendererSystem: rs,
		Scene:          NewScene(),
		renderer:       r,
		assets:         am,
	}, nil
}

// LoadMaterial reads a .kmt asset, resolves its diffuse map and registers it.
func (sm *SystemManager) LoadMaterial(name string) (*metadata.Material, error) {
	if sm.assets == nil {
		return nil, core.InvalidOperationf("loading material %s: no asset manager", name)
	}
	res, err := sm.assets.LoadAsset(name, nil)
	if err != nil {
		return nil, err
	}
	cfg, ok := res.Data.(*resources.MaterialConfig)
	if !ok {
		return nil, core.InvalidArgumentf("asset %s is %s, not a material", name, res.Type)
	}
	mat := cfg.Material
	mat.DiffuseTexture = sm.TextureSystem.Resolve(cfg.DiffuseMapName)
	if err := sm.MaterialSystem.Register(&mat); err != nil {
		return nil, errors.Wrapf(err, "registering material %s", name)
	}
	return &mat, nil
}

/**
 * @brief Imports a model asset and adds it to the scene. Each submesh uses the
 * registered material with the name the model was authored with, or the
 * default material.
 */
func (sm *SystemManager) LoadModel(name string, transform *math.Transform) (*MeshRenderer, error) {
	if sm.assets == nil {
		return nil, core.InvalidOperationf("loading model %s: no asset manager", name)
	}
	res, err := sm.assets.LoadAsset(name, &loaders.ModelParams{
		Renderer: sm.renderer,
		Flags:    resources.MeshReadable,
		FlipV:    true,
	})
	if err != nil {
		return nil, err
	}
	model, ok := res.Data.(*resources.ModelData)
	if !ok {
		return nil, core.InvalidArgumentf("asset %s is %s, not a model", name, res.Type)
	}
	materials := make([]*metadata.Material, 0, len(model.Materials))
	for _, matName := range model.Materials {
		mat, ok := sm.MaterialSystem.GetByName(matName)
		if !ok {
			mat = sm.MaterialSystem.Default()
		}
		materials = append(materials, mat)
	}
	mr := NewMeshRenderer(model.Mesh, transform, materials...)
	sm.Scene.AddRenderer(mr)
	return mr, nil
}

// Update runs once per frame before drawing.
func (sm *SystemManager) Update() {
	sm.TextureSystem.Update()
}

func (sm *SystemManager) DrawFrame() error {
	return sm.RendererSystem.DrawFrame(sm.Scene)
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.RendererSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.TextureSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.MaterialSystem.Shutdown(); err != nil {
		return err
	}
	sm.Scene.Clear()
	return nil
}
