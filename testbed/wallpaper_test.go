package testbed

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/livewall/engine"
	"github.com/spaghettifunk/livewall/engine/config"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func testConfig(t *testing.T, edit func(c *config.Config)) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Renderer.Backend = renderer.Headless.String()
	cfg.Renderer.ShaderDir = t.TempDir()
	cfg.Log.Level = core.WarnLevel.String()
	if edit != nil {
		edit(cfg)
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func renderOne(t *testing.T, cfg *config.Config) headless.Frame {
	t.Helper()
	e, err := engine.New(NewWallpaperApp(cfg), engine.Options{})
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	require.NoError(t, e.RenderFrames(context.Background(), 1, nil))
	frames := e.Backend().(*headless.Backend).HeadlessDevice().Frames()
	require.Len(t, frames, 1)
	return frames[0]
}

func TestPlaneScene(t *testing.T) {
	frame := renderOne(t, testConfig(t, nil))
	require.Len(t, frame.Draws, 1)
	assert.Equal(t, "basic_vertex+vortex_fragment", frame.Draws[0].Pipeline)
	assert.Nil(t, frame.Draws[0].FragmentTextures[metadata.MainTextureIndex])
}

func TestCuboidScene(t *testing.T) {
	frame := renderOne(t, testConfig(t, func(c *config.Config) {
		c.Wallpaper.Scene = config.SceneCuboid
		c.Wallpaper.Effect.Fragment = "color_fragment"
	}))
	require.Len(t, frame.Draws, 1)
	assert.Equal(t, "basic_vertex+color_fragment", frame.Draws[0].Pipeline)
	assert.Equal(t, 36, frame.Draws[0].VertexCount)
}

func TestEmptyScene(t *testing.T) {
	frame := renderOne(t, testConfig(t, func(c *config.Config) {
		c.Wallpaper.Scene = config.SceneEmpty
	}))
	assert.Empty(t, frame.Draws)
	assert.True(t, frame.Presented)
}

func TestTexturedPlane(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sky.png")
	writePNG(t, path, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	frame := renderOne(t, testConfig(t, func(c *config.Config) {
		c.Wallpaper.Texture = path
	}))
	require.Len(t, frame.Draws, 1)
	assert.Equal(t, "basic_vertex+texture_fragment", frame.Draws[0].Pipeline)

	tex, ok := frame.Draws[0].FragmentTextures[metadata.MainTextureIndex].(*headless.Texture)
	require.True(t, ok)
	assert.Equal(t, []byte{10, 20, 30, 255}, tex.Pixels()[:4])
}

func TestVideoPlane(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		writePNG(t, filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i)), color.NRGBA{R: uint8(i * 50), A: 255})
	}

	frame := renderOne(t, testConfig(t, func(c *config.Config) {
		c.Wallpaper.VideoFrames = dir
	}))
	require.Len(t, frame.Draws, 1)
	assert.Equal(t, "basic_vertex+texture_fragment", frame.Draws[0].Pipeline)
	assert.NotNil(t, frame.Draws[0].FragmentTextures[metadata.MainTextureIndex])
}

func TestMissingTextureFailsInitialize(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Wallpaper.Texture = filepath.Join(t.TempDir(), "missing.png")
	})
	e, err := engine.New(NewWallpaperApp(cfg), engine.Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, e.Initialize(), os.ErrNotExist)
}

func TestUpdateLogsPeriodically(t *testing.T) {
	app := NewWallpaperApp(testConfig(t, nil))
	state := app.State.(*wallpaperState)
	require.NoError(t, app.FnOnResize(800, 600))
	assert.Equal(t, 800, state.width)

	e, err := engine.New(app, engine.Options{})
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	t.Cleanup(func() { _ = e.Shutdown() })

	require.NoError(t, app.FnUpdate(e.Wallpaper(), 2))
	assert.InDelta(t, 2.0, state.sinceStats, 1e-9)
	require.NoError(t, app.FnUpdate(e.Wallpaper(), statsInterval))
	assert.Zero(t, state.sinceStats)
}
