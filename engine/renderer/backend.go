package renderer

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// Backend is a GPU implementation together with the surface it presents to.
type Backend interface {
	Device() metadata.Device
	Surface() metadata.Surface
	// Resized is called on the render timeline before Renderer.Resize.
	Resized(width, height int) error
	Shutdown() error
}

type BackendType uint8

const (
	Vulkan BackendType = iota
	Headless
)

func (t BackendType) String() string {
	switch t {
	case Vulkan:
		return "vulkan"
	case Headless:
		return "headless"
	}
	return fmt.Sprintf("BackendType(%d)", t)
}

func ParseBackendType(name string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "vulkan":
		return Vulkan, nil
	case "headless":
		return Headless, nil
	}
	return 0, fmt.Errorf("backend %q: %w", name, core.ErrUnknownBackend)
}
