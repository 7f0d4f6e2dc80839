// Package config loads the wallpaper configuration from TOML or YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/materials"
)

const (
	SceneEmpty  = "empty"
	ScenePlane  = "plane"
	SceneCuboid = "cuboid"
)

type Config struct {
	Window    WindowConfig    `toml:"window" yaml:"window"`
	Renderer  RendererConfig  `toml:"renderer" yaml:"renderer"`
	Wallpaper WallpaperConfig `toml:"wallpaper" yaml:"wallpaper"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

type WindowConfig struct {
	Name   string `toml:"name" yaml:"name"`
	X      int    `toml:"x" yaml:"x"`
	Y      int    `toml:"y" yaml:"y"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
}

type RendererConfig struct {
	Backend        string `toml:"backend" yaml:"backend"`
	InFlightFrames int    `toml:"in_flight_frames" yaml:"in_flight_frames"`
	TargetFPS      int    `toml:"target_fps" yaml:"target_fps"`
	ShaderDir      string `toml:"shader_dir" yaml:"shader_dir"`
	Validation     bool   `toml:"validation" yaml:"validation"`
	VSync          *bool  `toml:"vsync" yaml:"vsync"`
	Compute        bool   `toml:"compute" yaml:"compute"`
	ClearColor     *Color `toml:"clear_color" yaml:"clear_color"`
}

type EffectConfig struct {
	Vertex   string `toml:"vertex" yaml:"vertex"`
	Fragment string `toml:"fragment" yaml:"fragment"`
	Kernel   string `toml:"kernel" yaml:"kernel"`
}

type WallpaperConfig struct {
	Effect      EffectConfig `toml:"effect" yaml:"effect"`
	Scene       string       `toml:"scene" yaml:"scene"`
	Texture     string       `toml:"texture" yaml:"texture"`
	VideoFrames string       `toml:"video_frames" yaml:"video_frames"`
	VideoFPS    float64      `toml:"video_fps" yaml:"video_fps"`
	Playing     *bool        `toml:"playing" yaml:"playing"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

func boolPtr(b bool) *bool {
	return &b
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every zero value with its default.
func (c *Config) ApplyDefaults() {
	if c.Window.Name == "" {
		c.Window.Name = "livewall"
	}
	if c.Window.Width <= 0 {
		c.Window.Width = 1280
	}
	if c.Window.Height <= 0 {
		c.Window.Height = 720
	}

	if c.Renderer.Backend == "" {
		c.Renderer.Backend = renderer.Vulkan.String()
	}
	if c.Renderer.InFlightFrames <= 0 {
		c.Renderer.InFlightFrames = 3
	}
	if c.Renderer.TargetFPS <= 0 {
		c.Renderer.TargetFPS = 60
	}
	if c.Renderer.ShaderDir == "" {
		c.Renderer.ShaderDir = filepath.Join("assets", "shaders")
	}
	if c.Renderer.VSync == nil {
		c.Renderer.VSync = boolPtr(true)
	}
	if c.Renderer.ClearColor == nil {
		c.Renderer.ClearColor = &Color{}
		c.Renderer.ClearColor.A = 255
	}

	if c.Wallpaper.Effect.Vertex == "" {
		c.Wallpaper.Effect.Vertex = "basic_vertex"
	}
	if c.Wallpaper.Effect.Fragment == "" {
		if c.Wallpaper.Texture != "" || c.Wallpaper.VideoFrames != "" {
			c.Wallpaper.Effect.Fragment = "texture_fragment"
		} else {
			c.Wallpaper.Effect.Fragment = "vortex_fragment"
		}
	}
	if c.Wallpaper.Scene == "" {
		c.Wallpaper.Scene = ScenePlane
	}
	if c.Wallpaper.VideoFPS <= 0 {
		c.Wallpaper.VideoFPS = 30
	}
	if c.Wallpaper.Playing == nil {
		c.Wallpaper.Playing = boolPtr(true)
	}

	if c.Log.Level == "" {
		c.Log.Level = core.DebugLevel.String()
	}
}

// Validate checks the values that have a closed set of choices.
func (c *Config) Validate() error {
	if _, err := renderer.ParseBackendType(c.Renderer.Backend); err != nil {
		return err
	}
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Wallpaper.Scene {
	case SceneEmpty, ScenePlane, SceneCuboid:
	default:
		return fmt.Errorf("%w: scene %q", core.ErrUnsupportedConfig, c.Wallpaper.Scene)
	}
	if c.Wallpaper.Texture != "" && c.Wallpaper.VideoFrames != "" {
		return fmt.Errorf("%w: texture and video_frames are exclusive", core.ErrUnsupportedConfig)
	}
	return nil
}

func (c *Config) Effect() materials.Effect {
	return materials.Effect{
		VertexFunction:   c.Wallpaper.Effect.Vertex,
		FragmentFunction: c.Wallpaper.Effect.Fragment,
		KernelFunction:   c.Wallpaper.Effect.Kernel,
	}
}

func (c *Config) BackendType() renderer.BackendType {
	t, _ := renderer.ParseBackendType(c.Renderer.Backend)
	return t
}

func (c *Config) LogLevel() core.LogLevel {
	l, _ := core.ParseLogLevel(c.Log.Level)
	return l
}

func (c *Config) Playing() bool {
	return c.Wallpaper.Playing == nil || *c.Wallpaper.Playing
}

func (c *Config) VSync() bool {
	return c.Renderer.VSync == nil || *c.Renderer.VSync
}

// Load reads a configuration file. The format follows the extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatTOML
}

// Parse decodes, applies defaults and validates.
func Parse(data []byte, format Format) (*Config, error) {
	c := &Config{}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document leaves the defaults.
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return nil, err
		}
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode writes c in the given format.
func (c *Config) Encode(format Format) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(c)
	}
	return toml.Marshal(c)
}
