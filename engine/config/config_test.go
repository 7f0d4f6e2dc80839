package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "livewall", c.Window.Name)
	assert.Equal(t, 1280, c.Window.Width)
	assert.Equal(t, 720, c.Window.Height)
	assert.Equal(t, renderer.Vulkan, c.BackendType())
	assert.Equal(t, 3, c.Renderer.InFlightFrames)
	assert.Equal(t, 60, c.Renderer.TargetFPS)
	assert.Equal(t, filepath.Join("assets", "shaders"), c.Renderer.ShaderDir)
	assert.True(t, c.VSync())
	assert.Equal(t, metadata.ClearColor{Alpha: 1}, c.Renderer.ClearColor.ClearColor())
	assert.Equal(t, "basic_vertex", c.Wallpaper.Effect.Vertex)
	assert.Equal(t, "vortex_fragment", c.Wallpaper.Effect.Fragment)
	assert.Equal(t, ScenePlane, c.Wallpaper.Scene)
	assert.True(t, c.Playing())
	assert.Equal(t, core.DebugLevel, c.LogLevel())
}

func TestParseTOML(t *testing.T) {
	data := []byte(`
[window]
name = "desk"
width = 800

[renderer]
backend = "headless"
target_fps = 30
clear_color = "#336699"
vsync = false

[wallpaper]
scene = "cuboid"
texture = "textures/flower.png"
playing = false

[wallpaper.effect]
kernel = "waterEffect"

[log]
level = "warn"
`)
	c, err := Parse(data, FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "desk", c.Window.Name)
	assert.Equal(t, 800, c.Window.Width)
	assert.Equal(t, 720, c.Window.Height)
	assert.Equal(t, renderer.Headless, c.BackendType())
	assert.Equal(t, 30, c.Renderer.TargetFPS)
	assert.False(t, c.VSync())
	assert.Equal(t, "#336699ff", c.Renderer.ClearColor.String())
	assert.Equal(t, SceneCuboid, c.Wallpaper.Scene)
	assert.Equal(t, "texture_fragment", c.Wallpaper.Effect.Fragment)
	assert.Equal(t, "waterEffect", c.Wallpaper.Effect.Kernel)
	assert.False(t, c.Playing())
	assert.Equal(t, core.WarnLevel, c.LogLevel())
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
renderer:
  clear_color: midnightblue
  compute: true
wallpaper:
  video_frames: frames
  video_fps: 24
`)
	c, err := Parse(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, uint8(25), c.Renderer.ClearColor.R)
	assert.Equal(t, uint8(112), c.Renderer.ClearColor.B)
	assert.True(t, c.Renderer.Compute)
	assert.Equal(t, "frames", c.Wallpaper.VideoFrames)
	assert.InDelta(t, 24.0, c.Wallpaper.VideoFPS, 1e-9)

	empty, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), empty)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"unknown backend", "[renderer]\nbackend = \"metal\"\n", FormatTOML},
		{"unknown scene", "wallpaper:\n  scene: teapot\n", FormatYAML},
		{"bad color", "[renderer]\nclear_color = \"#12\"\n", FormatTOML},
		{"bad log level", "log:\n  level: loud\n", FormatYAML},
		{"unknown field", "[renderer]\nspeed = 3\n", FormatTOML},
		{"texture and video", "wallpaper:\n  texture: a.png\n  video_frames: dir\n", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#fff", "#ffffffff"},
		{"#102030", "#102030ff"},
		{"#10203040", "#10203040"},
		{"Red", "#ff0000ff"},
		{"transparent", "#00000000"},
	}
	for _, tt := range tests {
		c, err := ParseColor(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, c.String())
	}
	for _, bad := range []string{"", "#ggg", "#12345", "notacolor"} {
		_, err := ParseColor(bad)
		assert.ErrorIs(t, err, core.ErrUnsupportedConfig, bad)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	c := Default()
	c.Renderer.Backend = "headless"
	for _, format := range []Format{FormatTOML, FormatYAML} {
		data, err := c.Encode(format)
		require.NoError(t, err)
		back, err := Parse(data, format)
		require.NoError(t, err)
		assert.Equal(t, c, back)
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "livewall.yml")
	require.NoError(t, os.WriteFile(yml, []byte("window:\n  width: 640\n"), 0o644))
	c, err := Load(yml)
	require.NoError(t, err)
	assert.Equal(t, 640, c.Window.Width)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livewall.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	// A broken file is ignored.
	require.NoError(t, os.WriteFile(path, []byte("[log\n"), 0o644))
	time.Sleep(3 * reloadDelay)
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"error\"\n"), 0o644))

	select {
	case c := <-w.Changes():
		assert.Equal(t, core.ErrorLevel, c.LogLevel())
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
	require.NoError(t, w.Close())
}
