package engine

import (
	"fmt"

	"github.com/spaghettifunk/livewall/engine/config"
	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/spaghettifunk/livewall/engine/renderer/vulkan"
)

// newBackend creates the GPU backend named by the configuration. The Vulkan
// backend needs the platform window and the shader index, the headless one
// needs neither.
func newBackend(cfg *config.Config, window vulkan.Window, shaders vulkan.ShaderSource) (renderer.Backend, error) {
	switch t := cfg.BackendType(); t {
	case renderer.Headless:
		return headless.NewBackend(headless.Config{
			Name:             cfg.Window.Name,
			Width:            cfg.Window.Width,
			Height:           cfg.Window.Height,
			ComputeSupported: cfg.Renderer.Compute,
		})
	case renderer.Vulkan:
		if window == nil || shaders == nil {
			return nil, fmt.Errorf("the vulkan backend needs a window and a shader directory")
		}
		return vulkan.New(vulkan.Config{
			AppName:        cfg.Window.Name,
			Window:         window,
			Shaders:        shaders,
			InFlightFrames: cfg.Renderer.InFlightFrames,
			Validation:     cfg.Renderer.Validation,
			VSync:          cfg.VSync(),
			PreferDiscrete: true,
		})
	default:
		return nil, fmt.Errorf("backend %s is not available", t)
	}
}
