package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/livewall/engine/assets"
	"github.com/spaghettifunk/livewall/engine/config"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/platform"
	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every resource
	EngineStageShutdown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	case EngineStageShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

type Options struct {
	// ConfigPath is watched for live reloads when set.
	ConfigPath string
}

// Engine wires the platform window, the assets, the GPU backend and the
// wallpaper together and drives the frame loop.
type Engine struct {
	currentStage Stage
	app          *Application
	config       *config.Config
	options      Options

	bus      *core.EventBus
	input    *core.Input
	platform *platform.Platform
	assets   *assets.AssetManager
	watcher  *config.Watcher
	backend  renderer.Backend

	renderer  *renderer.Renderer
	wallpaper *Wallpaper

	isRunning   atomic.Bool
	isSuspended bool
	width       int
	height      int
	clock       *core.Clock
	lastTime    float64

	assetEvents      <-chan assets.Event
	stopAssetUpdates func()
}

func New(app *Application, options Options) (*Engine, error) {
	if app == nil {
		return nil, errors.New("engine needs an application")
	}
	if app.Config == nil {
		app.Config = config.Default()
	}
	if err := app.Config.Validate(); err != nil {
		return nil, err
	}
	bus := core.NewEventBus()
	return &Engine{
		currentStage: EngineStageUninitialized,
		app:          app,
		config:       app.Config,
		options:      options,
		bus:          bus,
		input:        core.NewInput(bus),
		clock:        core.NewClock(),
		width:        app.Config.Window.Width,
		height:       app.Config.Window.Height,
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Wallpaper() *Wallpaper {
	return e.wallpaper
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Backend() renderer.Backend {
	return e.backend
}

func (e *Engine) Bus() *core.EventBus {
	return e.bus
}

func (e *Engine) Input() *core.Input {
	return e.input
}

// Initialize brings every subsystem up. On failure the subsystems created
// so far are released.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine already %s", e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	if err := e.initialize(); err != nil {
		e.Shutdown()
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) initialize() error {
	cfg := e.config
	core.SetLogLevel(cfg.LogLevel())

	e.bus.Register(core.EventCodeApplicationQuit, e, e.onEvent)
	e.bus.Register(core.EventCodeKeyPressed, e, e.onKey)
	e.bus.Register(core.EventCodeMouseMoved, e, e.onMouseMoved)
	e.bus.Register(core.EventCodeResized, e, e.onResized)

	var (
		window  vulkan.Window
		shaders vulkan.ShaderSource
	)
	if cfg.BackendType() == renderer.Vulkan {
		e.platform = platform.New(e.bus, e.input)
		if err := e.platform.Startup(cfg.Window.Name, cfg.Window.X, cfg.Window.Y, cfg.Window.Width, cfg.Window.Height); err != nil {
			return fmt.Errorf("failed to start the platform layer: %w", err)
		}
		window = e.platform
		e.width, e.height = e.platform.FramebufferSize()
	}

	if err := e.startAssets(); err != nil {
		// Shaders are optional without a GPU, the headless library is built in.
		if cfg.BackendType() == renderer.Vulkan {
			return err
		}
		core.LogWarn("assets unavailable: %s", err)
	}
	if e.assets != nil {
		shaders = e.assets
	}

	backend, err := newBackend(cfg, window, shaders)
	if err != nil {
		return fmt.Errorf("failed to create the %s backend: %w", cfg.Renderer.Backend, err)
	}
	e.backend = backend

	compute := renderer.ComputeConfig{Speed: 1, Intensity: 1}
	if cfg.Renderer.Compute {
		compute.Kernel = cfg.Wallpaper.Effect.Kernel
	}
	r, err := renderer.New(backend.Device(), backend.Surface(), renderer.Config{
		InFlightFrames: cfg.Renderer.InFlightFrames,
		Compute:        compute,
	})
	if err != nil {
		return fmt.Errorf("failed to create the renderer: %w", err)
	}
	e.renderer = r

	e.wallpaper = NewWallpaper(r, cfg.Effect())
	e.wallpaper.SetClearColor(cfg.Renderer.ClearColor.ClearColor())

	if e.app.FnInitialize != nil {
		if err := e.app.FnInitialize(e.wallpaper); err != nil {
			return err
		}
	}
	if e.app.FnOnResize != nil {
		if err := e.app.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	if cfg.Playing() {
		e.wallpaper.Play()
	}

	if e.options.ConfigPath != "" {
		w, err := config.NewWatcher(e.options.ConfigPath)
		if err != nil {
			core.LogWarn("live configuration reload disabled: %s", err)
		} else {
			e.watcher = w
		}
	}
	core.LogInfo("Engine initialized with the %s backend (%s).", cfg.Renderer.Backend, backend.Device().Name())
	return nil
}

func (e *Engine) startAssets() error {
	dir := e.config.Renderer.ShaderDir
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("shader directory: %w", err)
	}
	am, err := assets.NewAssetManager(dir)
	if err != nil {
		return err
	}
	e.assets = am
	e.assetEvents, e.stopAssetUpdates = am.Subscribe()
	return nil
}

// Run drives the frame loop until the application quits, ctx is done or
// the device is lost.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("cannot run an engine that is %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()
	targetFrameSeconds := 1.0 / float64(e.config.Renderer.TargetFPS)

	for e.isRunning.Load() {
		if err := ctx.Err(); err != nil {
			e.isRunning.Store(false)
			break
		}
		if e.platform != nil {
			e.platform.PumpMessages()
		}
		e.applyUpdates()

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if !e.isSuspended {
			if err := e.frame(ctx, delta); err != nil {
				e.isRunning.Store(false)
				return err
			}
		}

		// Input is the last thing updated in a frame.
		e.input.Update()
		e.lastTime = currentTime

		e.clock.Update()
		remaining := targetFrameSeconds - (e.clock.Elapsed() - currentTime)
		if remaining > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(remaining * float64(time.Second))):
			}
		}
	}
	return nil
}

// frame returns only the errors that stop the loop.
func (e *Engine) frame(ctx context.Context, delta float64) error {
	if e.app.FnUpdate != nil {
		if err := e.app.FnUpdate(e.wallpaper, delta); err != nil {
			return fmt.Errorf("application update failed: %w", err)
		}
	}
	err := e.renderer.Draw(ctx)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrDeviceLost):
		core.LogError("GPU device lost, stopping.")
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		core.LogError("frame dropped: %s", err)
	}
	return nil
}

// RenderFrames draws n frames back to back without pacing, then waits for
// the GPU. progress is called after every frame.
func (e *Engine) RenderFrames(ctx context.Context, n int, progress func(frame int)) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("cannot render with an engine that is %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	defer func() { e.currentStage = EngineStageInitialized }()

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()
	for i := 0; i < n; i++ {
		e.applyUpdates()
		e.clock.Update()
		now := e.clock.Elapsed()
		if err := e.frame(ctx, now-e.lastTime); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		e.lastTime = now
		if progress != nil {
			progress(i + 1)
		}
	}
	return e.renderer.Drain(ctx)
}

// Stop asks the frame loop to return. It is safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// applyUpdates runs on the render timeline between frames.
func (e *Engine) applyUpdates() {
	if e.watcher != nil {
		select {
		case cfg := <-e.watcher.Changes():
			e.applyConfig(cfg)
		default:
		}
	}
	e.drainAssetEvents()
}

func (e *Engine) drainAssetEvents() {
	for {
		select {
		case ev, ok := <-e.assetEvents:
			if !ok {
				e.assetEvents = nil
				return
			}
			core.LogInfo("shader asset %s %s, pipelines pick it up on the next start.", ev.Asset.Path, ev.Op)
		default:
			return
		}
	}
}

// applyConfig applies the fields that can change while running.
func (e *Engine) applyConfig(cfg *config.Config) {
	core.SetLogLevel(cfg.LogLevel())
	e.wallpaper.SetClearColor(cfg.Renderer.ClearColor.ClearColor())
	if cfg.Playing() {
		e.wallpaper.Play()
	} else {
		e.wallpaper.Pause()
	}
	e.config.Log = cfg.Log
	e.config.Renderer.ClearColor = cfg.Renderer.ClearColor
	e.config.Wallpaper.Playing = cfg.Wallpaper.Playing
}

// Shutdown releases everything in the reverse order of creation. It can be
// called on a partially initialized engine.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	if e.renderer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.renderer.Drain(ctx); err != nil {
			core.LogWarn("frames still in flight at shutdown: %s", err)
		}
		cancel()
	}
	if e.wallpaper != nil {
		e.wallpaper.Close()
	}
	if e.app.FnShutdown != nil {
		errs = append(errs, e.app.FnShutdown())
	}
	if e.backend != nil {
		errs = append(errs, e.backend.Shutdown())
	}
	if e.stopAssetUpdates != nil {
		e.stopAssetUpdates()
	}
	if e.assets != nil {
		errs = append(errs, e.assets.Close())
	}
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	e.bus.Shutdown()
	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order) of the
// drawable.
func (e *Engine) GetFramebufferSize() (int, int) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) bool {
	if context.Type == core.EventCodeApplicationQuit {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ev, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	switch ev.KeyCode {
	case core.KeyEscape:
		e.bus.Fire(core.EventContext{Type: core.EventCodeApplicationQuit})
		return true
	case core.KeySpace:
		if e.wallpaper != nil {
			e.wallpaper.Toggle()
		}
		return true
	}
	return false
}

func (e *Engine) onMouseMoved(context core.EventContext) bool {
	ev, ok := context.Data.(*core.MouseEvent)
	if !ok || e.renderer == nil {
		return false
	}
	e.renderer.SetTouchPoint(math.NewVec2(float32(ev.PosX), float32(ev.PosY)))
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	ev, ok := context.Data.(*core.SystemEvent)
	if !ok {
		return false
	}
	width, height := int(ev.WindowWidth), int(ev.WindowHeight)
	if width == e.width && height == e.height && !e.isSuspended {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming.")
		e.isSuspended = false
	}
	if e.backend != nil {
		if err := e.backend.Resized(width, height); err != nil {
			core.LogError("backend resize failed: %s", err)
		}
	}
	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
	if e.app.FnOnResize != nil {
		if err := e.app.FnOnResize(width, height); err != nil {
			core.LogError("application resize failed: %s", err)
		}
	}
	return false
}
