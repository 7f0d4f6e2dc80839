// Package testbed is the default wallpaper application: it builds the scene
// described by the configuration and reports renderer statistics.
package testbed

import (
	"fmt"
	"image/color"

	"github.com/spaghettifunk/livewall/engine"
	"github.com/spaghettifunk/livewall/engine/assets"
	"github.com/spaghettifunk/livewall/engine/assets/loaders"
	"github.com/spaghettifunk/livewall/engine/config"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/geometry"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// Images larger than this are downscaled before upload.
const maxTextureSize = 4096

// How often the renderer statistics are logged, in seconds.
const statsInterval = 5.0

type wallpaperState struct {
	width  int
	height int

	sinceStats float64
	texture    metadata.Texture
	video      *assets.ImageSequenceSource
}

// NewWallpaperApp returns the application that shows cfg's scene. A nil
// cfg uses the defaults.
func NewWallpaperApp(cfg *config.Config) *engine.Application {
	if cfg == nil {
		cfg = config.Default()
	}
	state := &wallpaperState{}
	app := &engine.Application{
		Config: cfg,
		State:  state,
	}
	app.FnInitialize = func(w *engine.Wallpaper) error {
		return initialize(cfg, state, w)
	}
	app.FnUpdate = func(w *engine.Wallpaper, deltaTime float64) error {
		return update(state, w, deltaTime)
	}
	app.FnOnResize = func(width, height int) error {
		state.width, state.height = width, height
		return nil
	}
	app.FnShutdown = func() error {
		state.video = nil
		state.texture = nil
		return nil
	}
	return app
}

func initialize(cfg *config.Config, state *wallpaperState, w *engine.Wallpaper) error {
	core.LogInfo("building the %s scene with %s+%s", cfg.Wallpaper.Scene, cfg.Wallpaper.Effect.Vertex, cfg.Wallpaper.Effect.Fragment)

	textured := false
	switch {
	case cfg.Wallpaper.VideoFrames != "":
		video, err := assets.NewImageSequenceSource(w.Renderer().Device(), cfg.Wallpaper.VideoFrames, assets.ImageSequenceConfig{
			FPS:    cfg.Wallpaper.VideoFPS,
			Params: imageParams(),
		})
		if err != nil {
			return fmt.Errorf("failed to load the video frames: %w", err)
		}
		if err := w.SetVideoSource(video); err != nil {
			return err
		}
		state.video = video
		textured = true
	case cfg.Wallpaper.Texture != "":
		tex, err := loadTexture(w.Renderer().Device(), cfg.Wallpaper.Texture)
		if err != nil {
			return err
		}
		if err := w.SetTexture(tex); err != nil {
			return err
		}
		state.texture = tex
		textured = true
	}

	switch cfg.Wallpaper.Scene {
	case config.ScenePlane:
		_, err := w.CreatePlane(textured)
		return err
	case config.SceneCuboid:
		_, err := w.CreateCuboid(geometry.CuboidColors{
			Top:    color.NRGBA{R: 0xe6, G: 0x39, B: 0x46, A: 0xff},
			Right:  color.NRGBA{R: 0xf1, G: 0xfa, B: 0xee, A: 0xff},
			Bottom: color.NRGBA{R: 0xa8, G: 0xda, B: 0xdc, A: 0xff},
			Left:   color.NRGBA{R: 0x45, G: 0x7b, B: 0x9d, A: 0xff},
			Front:  color.NRGBA{R: 0x1d, G: 0x35, B: 0x57, A: 0xff},
			Back:   color.NRGBA{R: 0xff, G: 0xb7, B: 0x03, A: 0xff},
		})
		return err
	}
	// Empty scene, only the clear color is shown.
	return nil
}

func imageParams() metadata.ImageResourceParams {
	return metadata.ImageResourceParams{MaxWidth: maxTextureSize, MaxHeight: maxTextureSize}
}

func loadTexture(device metadata.Device, path string) (metadata.Texture, error) {
	params := imageParams()
	loader := &loaders.ImageLoader{}
	res, err := loader.Load(path, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to load texture %s: %w", path, err)
	}
	defer func() { _ = loader.Unload(res) }()

	img := res.Data.(*metadata.ImageResourceData)
	tex, err := device.NewTexture(img.TextureDescriptor(res.Name), img.Pixels)
	if err != nil {
		return nil, fmt.Errorf("failed to upload texture %s: %w", path, err)
	}
	core.LogDebug("texture %s loaded (%dx%d)", res.Name, img.Width, img.Height)
	return tex, nil
}

func update(state *wallpaperState, w *engine.Wallpaper, deltaTime float64) error {
	state.sinceStats += deltaTime
	if state.sinceStats < statsInterval {
		return nil
	}
	state.sinceStats = 0

	stats := w.Renderer().Stats()
	core.LogDebug("FPS: %5.1f (%4.1fms) frames=%d draws=%d in-flight=%d state=%s size=%dx%d",
		stats.FPS, stats.FrameTime, stats.Frames, stats.DrawCalls, stats.InFlight, w.State(), state.width, state.height)
	return nil
}
