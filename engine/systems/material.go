package systems

import (
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type MaterialSystemConfig struct {
	MaxMaterialCount uint32
}

/**
 * @brief Holds every material known to the engine by guid, plus a default
 * material returned for lookups that miss.
 */
type MaterialSystem struct {
	mu        sync.RWMutex
	config    MaterialSystemConfig
	materials map[string]*metadata.Material
	byName    map[string]string
	def       *metadata.Material
}

func NewMaterialSystem(config *MaterialSystemConfig) (*MaterialSystem, error) {
	if config == nil || config.MaxMaterialCount == 0 {
		err := core.InvalidArgumentf("func NewMaterialSystem - config.MaxMaterialCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	ms := &MaterialSystem{
		config:    *config,
		materials: make(map[string]*metadata.Material, config.MaxMaterialCount),
		byName:    make(map[string]string, config.MaxMaterialCount),
		def: &metadata.Material{
			Guid:           metadata.GenerateGuid(),
			Name:           metadata.DefaultMaterialName,
			Lighting:       metadata.LightingModeLit,
			DiffuseColour:  math.NewVec4One(),
			DiffuseTexture: metadata.InvalidHandle,
		},
	}
	return ms, nil
}

// Register adds m, giving it a guid when it has none. Registering a guid twice
// replaces the material and bumps its generation.
func (ms *MaterialSystem) Register(m *metadata.Material) error {
	if m == nil {
		return core.InvalidArgumentf("cannot register a nil material")
	}
	if m.Guid == "" {
		m.Guid = metadata.GenerateGuid()
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if old, ok := ms.materials[m.Guid]; ok {
		m.Generation = old.Generation + 1
		delete(ms.byName, old.Name)
	} else if uint32(len(ms.materials)) >= ms.config.MaxMaterialCount {
		err := core.InvalidOperationf("material system is full (%d materials)", ms.config.MaxMaterialCount)
		core.LogError(err.Error())
		return err
	}
	ms.materials[m.Guid] = m
	if m.Name != "" {
		ms.byName[m.Name] = m.Guid
	}
	return nil
}

// Get returns the material with guid, or the default material.
func (ms *MaterialSystem) Get(guid string) (*metadata.Material, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if m, ok := ms.materials[guid]; ok {
		return m, true
	}
	return ms.def, false
}

func (ms *MaterialSystem) GetByName(name string) (*metadata.Material, bool) {
	if name == metadata.DefaultMaterialName {
		return ms.def, true
	}
	ms.mu.RLock()
	guid, ok := ms.byName[name]
	ms.mu.RUnlock()
	if !ok {
		return ms.def, false
	}
	return ms.Get(guid)
}

func (ms *MaterialSystem) Release(guid string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if m, ok := ms.materials[guid]; ok {
		delete(ms.byName, m.Name)
		delete(ms.materials, guid)
	}
}

func (ms *MaterialSystem) Default() *metadata.Material {
	return ms.def
}

func (ms *MaterialSystem) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.materials)
}

func (ms *MaterialSystem) Shutdown() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.materials = make(map[string]*metadata.Material)
	ms.byName = make(map[string]string)
	return nil
}
