package renderer

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// BackendFactory creates an uninitialized backend.
type BackendFactory func() RendererBackend

var (
	factoriesMu sync.RWMutex
	factories   = map[metadata.RendererType]BackendFactory{}
)

// RegisterBackend makes a backend available to New. Backend packages call it from init.
func RegisterBackend(t metadata.RendererType, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("renderer: RegisterBackend factory is nil")
	}
	factories[t] = factory
}

/**
 * @brief The frontend the rest of the engine talks to: the selected backend
 * plus the vertex layout cache shared by every mesh.
 */
type Renderer struct {
	backend RendererBackend
	layouts *metadata.VertexLayoutCache
	events  *core.EventSystem
}

// New creates and initializes the backend named by cfg.Backend.
func New(cfg *core.RendererConfig, events *core.EventSystem) (*Renderer, error) {
	t, ok := metadata.ParseRendererType(cfg.Backend)
	if !ok {
		return nil, core.InvalidArgumentf("unknown renderer backend %q", cfg.Backend)
	}
	factoriesMu.RLock()
	factory, ok := factories[t]
	factoriesMu.RUnlock()
	if !ok {
		return nil, errors.Mark(errors.Newf("renderer backend %s is not linked in", t), core.ErrUnsupported)
	}

	backendConfig := &metadata.RendererBackendConfig{
		ApplicationName:  cfg.AppName,
		MaxVertexBuffers: cfg.MaxVertexBuffers,
		MaxIndexBuffers:  cfg.MaxIndexBuffers,
		MaxTextures:      cfg.MaxTextures,
		StagingPoolSize:  cfg.StagingPoolSize,
		Validation:       cfg.Validation,
		Events:           events,
		TargetWidth:      cfg.TargetWidth,
		TargetHeight:     cfg.TargetHeight,
	}
	var err error
	if backendConfig.VertexShader, err = readShader(cfg.VertexShader); err != nil {
		return nil, err
	}
	if backendConfig.FragmentShader, err = readShader(cfg.FragmentShader); err != nil {
		return nil, err
	}

	backend := factory()
	if err = backend.Initialize(backendConfig); err != nil {
		return nil, errors.Wrapf(err, "initializing %s backend", t)
	}
	core.LogInfo("renderer backend %s initialized", backend.Name())
	return NewWithBackend(backend, events), nil
}

// NewWithBackend wraps an already initialized backend.
func NewWithBackend(backend RendererBackend, events *core.EventSystem) *Renderer {
	return &Renderer{
		backend: backend,
		layouts: metadata.NewVertexLayoutCache(backend.CreateVertexLayoutBuilder),
		events:  events,
	}
}

func (r *Renderer) Backend() RendererBackend {
	return r.backend
}

func (r *Renderer) Layouts() *metadata.VertexLayoutCache {
	return r.layouts
}

func (r *Renderer) Events() *core.EventSystem {
	return r.events
}

func (r *Renderer) Shutdown() error {
	if err := r.backend.WaitIdle(); err != nil {
		core.LogWarn("waiting for %s backend before shutdown: %s", r.backend.Name(), err)
	}
	r.layouts.Clear()
	return r.backend.Shutdown()
}

func readShader(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	code, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// Backends without shaders skip their draws.
		core.LogWarn("shader %s not found, draws will be skipped", path)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader %s", path)
	}
	if len(code)%4 != 0 {
		return nil, core.InvalidArgumentf("shader %s is not SPIR-V: %d bytes is not a multiple of 4", path, len(code))
	}
	return code, nil
}
