package engine

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/systems"

	// Backends register themselves with the renderer.
	_ "github.com/spaghettifunk/lumen/engine/renderer/headless"
	_ "github.com/spaghettifunk/lumen/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.EngineConfig
	isRunning     atomic.Bool
	events        *core.EventSystem
	renderer      *renderer.Renderer
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      float64
	frameCount    uint64
}

// New boots the engine: it reads the config file and sets up logging and events.
func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, core.InvalidArgumentf("engine needs a game with an application config")
	}
	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		events:       core.NewEventSystem(),
	}

	path := g.ApplicationConfig.ConfigPath
	if path == "" {
		path = core.DefaultConfigFile
	}
	cfg, err := core.LoadConfig(path)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	level := cfg.Log.Level
	if g.ApplicationConfig.LogLevel != "" {
		level = g.ApplicationConfig.LogLevel
	}
	core.SetLogLevel(core.ParseLogLevel(level))
	if g.ApplicationConfig.Name != "" {
		cfg.Renderer.AppName = g.ApplicationConfig.Name
	}
	e.config = cfg

	e.events.Register(core.EventCodeApplicationQuit, e, e.onQuit)
	e.currentStage = EngineStageBootComplete
	return e, nil
}

// Config returns the loaded engine configuration.
func (e *Engine) Config() *core.EngineConfig {
	return e.config
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) Events() *core.EventSystem {
	return e.events
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Initialize creates the renderer, the asset manager and the systems, then runs the game's initializer.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return core.InvalidOperationf("engine initialized twice or before boot")
	}
	e.currentStage = EngineStageInitializing

	r, err := renderer.New(&e.config.Renderer, e.events)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	e.renderer = r

	am := assets.NewAssetManager(e.config.Assets, e.events)
	if err := am.Initialize(); err != nil {
		// The engine can still draw generated meshes without assets on disk.
		core.LogWarn("asset manager disabled: %s", err)
		am = nil
	}
	e.assetManager = am

	sm, err := systems.NewSystemManager(r, e.metrics, am, &systems.SystemManagerConfig{
		Workers:          runtime.NumCPU(),
		JobQueueSize:     256,
		MaxMaterialCount: 1024,
		MaxTextureCount:  e.config.Renderer.MaxTextures,
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	e.systemManager = sm
	e.gameInstance.SystemManager = sm

	rc := e.config.Renderer
	aspect := float32(1)
	if rc.TargetWidth > 0 && rc.TargetHeight > 0 {
		aspect = float32(rc.TargetWidth) / float32(rc.TargetHeight)
	}
	sm.RendererSystem.Camera = components.NewCamera(aspect)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return errors.Wrap(err, "initializing game")
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the frame loop until Quit is called or the frame limit is reached.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.InvalidOperationf("engine must be initialized before Run")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	appConfig := e.gameInstance.ApplicationConfig
	var targetFrameSeconds float64
	if appConfig.TargetFrameRate > 0 {
		targetFrameSeconds = 1.0 / float64(appConfig.TargetFrameRate)
	}

	for e.isRunning.Load() {
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := currentTime

		if err := e.frame(delta); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.frameCount, err)
			e.isRunning.Store(false)
			return err
		}

		e.clock.Update()
		frameElapsedTime := e.clock.Elapsed() - frameStartTime
		e.metrics.Update(frameElapsedTime)

		// If there is time left, give it back to the OS.
		if remaining := targetFrameSeconds - frameElapsedTime; remaining > 0 {
			time.Sleep(time.Duration(remaining * float64(time.Second)))
		}

		e.lastTime = currentTime
		e.frameCount++
		if appConfig.MaxFrames > 0 && e.frameCount >= appConfig.MaxFrames {
			e.isRunning.Store(false)
		}
	}

	fps, frameMS := e.metrics.Frame()
	core.LogInfo("ran %d frames (%.1f fps, %.3f ms avg)", e.frameCount, fps, frameMS)
	return nil
}

func (e *Engine) frame(delta float64) error {
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return errors.Wrap(err, "game update")
		}
	}
	e.systemManager.Update()
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(delta); err != nil {
			return errors.Wrap(err, "game render")
		}
	}
	return e.systemManager.DrawFrame()
}

// Quit asks the loop to stop after the current frame. Safe to call from any goroutine.
func (e *Engine) Quit() {
	e.events.Fire(e, core.NewEvent(core.ApplicationQuitEvent{}))
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs error
	if e.gameInstance.FnShutdown != nil {
		errs = errors.CombineErrors(errs, e.gameInstance.FnShutdown())
	}
	if e.systemManager != nil {
		errs = errors.CombineErrors(errs, e.systemManager.Shutdown())
	}
	if e.assetManager != nil {
		errs = errors.CombineErrors(errs, e.assetManager.Shutdown())
	}
	if e.renderer != nil {
		errs = errors.CombineErrors(errs, e.renderer.Shutdown())
	}
	errs = errors.CombineErrors(errs, e.events.Shutdown())
	e.currentStage = EngineStageUninitialized
	return errs
}

func (e *Engine) onQuit(sender interface{}, listener interface{}, ctx core.EventContext) bool {
	core.LogInfo("ApplicationQuit received, shutting down.")
	e.isRunning.Store(false)
	return true
}
