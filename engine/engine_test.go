package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/livewall/engine/config"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headlessConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Renderer.Backend = renderer.Headless.String()
	cfg.Renderer.ShaderDir = t.TempDir()
	cfg.Renderer.TargetFPS = 240
	cfg.Window.Width = 320
	cfg.Window.Height = 200
	cfg.Log.Level = core.WarnLevel.String()
	cfg.ApplyDefaults()
	return cfg
}

func newTestEngine(t *testing.T, app *Application, opts Options) *Engine {
	t.Helper()
	if app.Config == nil {
		app.Config = headlessConfig(t)
	}
	if app.FnInitialize == nil {
		app.FnInitialize = func(w *Wallpaper) error {
			_, err := w.CreatePlane(false)
			return err
		}
	}
	e, err := New(app, opts)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

func headlessDevice(t *testing.T, e *Engine) *headless.Device {
	t.Helper()
	b, ok := e.Backend().(*headless.Backend)
	require.True(t, ok, "backend is %T", e.Backend())
	return b.HeadlessDevice()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	cfg := headlessConfig(t)
	cfg.Wallpaper.Scene = "teapot"
	_, err = New(&Application{Config: cfg}, Options{})
	assert.ErrorIs(t, err, core.ErrUnsupportedConfig)
}

func TestInitializeAndRenderFrames(t *testing.T) {
	resized := 0
	e := newTestEngine(t, &Application{
		FnOnResize: func(w, h int) error {
			resized++
			assert.Equal(t, 320, w)
			assert.Equal(t, 200, h)
			return nil
		},
	}, Options{})

	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.Equal(t, 1, resized)
	assert.Equal(t, StatePlaying, e.Wallpaper().State())
	assert.Error(t, e.Initialize())

	var progress []int
	updates := 0
	e.app.FnUpdate = func(*Wallpaper, float64) error {
		updates++
		return nil
	}
	require.NoError(t, e.RenderFrames(context.Background(), 4, func(i int) { progress = append(progress, i) }))
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	assert.Equal(t, 4, updates)
	assert.Equal(t, EngineStageInitialized, e.Stage())

	frames := headlessDevice(t, e).Frames()
	require.Len(t, frames, 4)
	for _, f := range frames {
		assert.True(t, f.Presented)
		require.Len(t, f.Draws, 1)
		assert.Equal(t, "basic_vertex+vortex_fragment", f.Draws[0].Pipeline)
	}
	assert.Equal(t, uint64(4), e.Renderer().Stats().Frames)
}

func TestInitializeFailureReleasesSubsystems(t *testing.T) {
	shutdown := false
	e, err := New(&Application{
		Config:       headlessConfig(t),
		FnInitialize: func(*Wallpaper) error { return errors.New("no scene") },
		FnShutdown: func() error {
			shutdown = true
			return nil
		},
	}, Options{})
	require.NoError(t, err)

	assert.EqualError(t, e.Initialize(), "no scene")
	assert.Equal(t, EngineStageShutdown, e.Stage())
	assert.True(t, shutdown)
}

func TestPausedWallpaperSkipsFrames(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.Wallpaper.Playing = new(bool)
	e := newTestEngine(t, &Application{Config: cfg}, Options{})

	assert.Equal(t, StateInitial, e.Wallpaper().State())
	require.NoError(t, e.RenderFrames(context.Background(), 3, nil))
	assert.Empty(t, headlessDevice(t, e).Frames())

	e.Bus().Fire(core.EventContext{Type: core.EventCodeKeyPressed, Data: &core.KeyEvent{KeyCode: core.KeySpace}})
	assert.Equal(t, StatePlaying, e.Wallpaper().State())
	require.NoError(t, e.RenderFrames(context.Background(), 2, nil))
	assert.Len(t, headlessDevice(t, e).Frames(), 2)

	e.Bus().Fire(core.EventContext{Type: core.EventCodeKeyPressed, Data: &core.KeyEvent{KeyCode: core.KeySpace}})
	assert.Equal(t, StatePaused, e.Wallpaper().State())
}

func TestEscapeStopsRun(t *testing.T) {
	e := newTestEngine(t, &Application{}, Options{})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	assert.Eventually(t, func() bool { return len(headlessDevice(t, e).Frames()) > 0 }, 2*time.Second, 5*time.Millisecond)
	e.Bus().Fire(core.EventContext{Type: core.EventCodeKeyPressed, Data: &core.KeyEvent{KeyCode: core.KeyEscape}})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after escape")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	e := newTestEngine(t, &Application{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunStopsOnDeviceLoss(t *testing.T) {
	e := newTestEngine(t, &Application{}, Options{})
	headlessDevice(t, e).FailNextCommit(errors.New("gpu hung"))

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrDeviceLost)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the device was lost")
	}
	assert.True(t, e.Renderer().DeviceLost())
}

func TestResizeSuspendsAndResumes(t *testing.T) {
	var sizes [][2]int
	e := newTestEngine(t, &Application{
		FnOnResize: func(w, h int) error {
			sizes = append(sizes, [2]int{w, h})
			return nil
		},
	}, Options{})
	resize := func(w, h uint16) {
		e.Bus().Fire(core.EventContext{Type: core.EventCodeResized, Data: &core.SystemEvent{WindowWidth: w, WindowHeight: h}})
	}

	resize(0, 0)
	assert.True(t, e.isSuspended)
	assert.Len(t, sizes, 1)

	resize(640, 480)
	assert.False(t, e.isSuspended)
	w, h := e.GetFramebufferSize()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
	assert.Equal(t, [2]int{640, 480}, sizes[len(sizes)-1])

	sw, sh := e.Backend().(*headless.Backend).HeadlessSurface().DrawableSize()
	assert.Equal(t, 640, sw)
	assert.Equal(t, 480, sh)

	// Same size again is ignored.
	resize(640, 480)
	assert.Len(t, sizes, 2)
}

func TestMouseMovesTouchPoint(t *testing.T) {
	e := newTestEngine(t, &Application{}, Options{})
	e.Bus().Fire(core.EventContext{Type: core.EventCodeMouseMoved, Data: &core.MouseEvent{PosX: 12, PosY: 34}})
	assert.Equal(t, math.NewVec2(12, 34), e.Renderer().TouchPoint())
}

func TestConfigReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livewall.toml")
	cfg := headlessConfig(t)
	data, err := cfg.Encode(config.FormatTOML)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	e := newTestEngine(t, &Application{Config: cfg}, Options{ConfigPath: path})
	require.NotNil(t, e.watcher)
	assert.Equal(t, StatePlaying, e.Wallpaper().State())

	updated := *cfg
	updated.Wallpaper.Playing = new(bool)
	updated.Renderer.ClearColor = &config.Color{}
	updated.Renderer.ClearColor.R = 255
	updated.Renderer.ClearColor.A = 255
	data, err = updated.Encode(config.FormatTOML)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	assert.Eventually(t, func() bool {
		e.applyUpdates()
		return e.Wallpaper().State() == StatePaused
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, float64(1), e.Renderer().Scene().ClearColor.Red)
}

func TestShutdownIsIdempotent(t *testing.T) {
	e := newTestEngine(t, &Application{}, Options{})
	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShutdown, e.Stage())
	assert.NoError(t, e.Shutdown())
	assert.Error(t, e.Run(context.Background()))
}
