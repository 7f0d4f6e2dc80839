package platform

import (
	"errors"
	"runtime"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/livewall/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform is the glfw window the wallpaper renders into. Window callbacks
// are translated into events on the bus.
type Platform struct {
	Window *glfw.Window

	bus       *core.EventBus
	input     *core.Input
	startTime float64
}

func New(bus *core.EventBus, input *core.Input) *Platform {
	return &Platform{
		bus:   bus,
		input: input,
	}
}

func (p *Platform) Startup(applicationName string, x, y, width, height int) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(width, height, applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return err
	}
	p.Window = window

	window.SetKeyCallback(p.keyCallback)
	window.SetMouseButtonCallback(p.mouseButtonCallback)
	window.SetCursorPosCallback(p.cursorPosCallback)
	window.SetScrollCallback(p.scrollCallback)
	window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	window.SetCloseCallback(p.closeCallback)
	window.SetPos(x, y)
	window.Show()

	p.startTime = glfw.GetTime()
	core.LogInfo("Window %q created (%dx%d).", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. Callbacks run on the
// calling goroutine, which must be the main thread.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) FramebufferSize() (int, int) {
	return p.Window.GetFramebufferSize()
}

func (p *Platform) ContentScale() (float32, float32) {
	return p.Window.GetContentScale()
}

func (p *Platform) RequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, allocator)
}

// GetAbsoluteTime returns seconds since the window was created.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

func (p *Platform) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	p.input.ProcessKey(translateKey(key), action == glfw.Press)
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.ButtonLeft
	case glfw.MouseButtonRight:
		b = core.ButtonRight
	case glfw.MouseButtonMiddle:
		b = core.ButtonMiddle
	default:
		return
	}
	p.input.ProcessButton(b, action == glfw.Press)
}

// cursorPosCallback converts window coordinates into framebuffer pixels.
func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	ww, wh := w.GetSize()
	fw, fh := w.GetFramebufferSize()
	if ww > 0 && wh > 0 {
		xpos *= float64(fw) / float64(ww)
		ypos *= float64(fh) / float64(wh)
	}
	p.input.ProcessMouseMove(toPixel(xpos), toPixel(ypos))
}

func toPixel(v float64) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 65535:
		return 65535
	}
	return uint16(v)
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	switch {
	case yoff > 0:
		p.input.ProcessMouseWheel(1)
	case yoff < 0:
		p.input.ProcessMouseWheel(-1)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.bus.Fire(core.EventContext{
		Type: core.EventCodeResized,
		Data: &core.SystemEvent{WindowWidth: uint32(width), WindowHeight: uint32(height)},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.bus.Fire(core.EventContext{Type: core.EventCodeApplicationQuit})
}

// translateKey maps glfw keys onto the engine key table. Letters and space
// share their ASCII codes.
func translateKey(key glfw.Key) core.KeyCode {
	switch {
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return core.KeyCode(key)
	case key >= glfw.Key0 && key <= glfw.Key9:
		return core.KeyCode(key)
	case key >= glfw.KeyF1 && key <= glfw.KeyF12:
		return core.KeyF1 + core.KeyCode(key-glfw.KeyF1)
	}
	switch key {
	case glfw.KeySpace:
		return core.KeySpace
	case glfw.KeyEscape:
		return core.KeyEscape
	case glfw.KeyEnter:
		return core.KeyEnter
	case glfw.KeyTab:
		return core.KeyTab
	case glfw.KeyBackspace:
		return core.KeyBackspace
	case glfw.KeyPause:
		return core.KeyPause
	case glfw.KeyLeft:
		return core.KeyLeft
	case glfw.KeyRight:
		return core.KeyRight
	case glfw.KeyUp:
		return core.KeyUp
	case glfw.KeyDown:
		return core.KeyDown
	}
	return core.KeyUnknown
}
