package engine

import (
	"github.com/spaghettifunk/livewall/engine/config"
)

// Application is the content side of the engine. Every hook is optional.
type Application struct {
	Config *config.Config
	State  interface{}

	// FnInitialize builds the scene once the renderer exists.
	FnInitialize Initialize
	// FnUpdate runs on the render timeline before every Draw.
	FnUpdate   Update
	FnOnResize OnResize
	FnShutdown Shutdown
}

type Initialize func(w *Wallpaper) error
type Update func(w *Wallpaper, deltaTime float64) error
type OnResize func(width, height int) error
type Shutdown func() error
