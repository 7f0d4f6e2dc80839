package core

import "sync"

type Button uint16

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	ButtonMaxButtons
)

// KeyCode values follow the virtual key table used by most platforms, so
// letters map to their upper case ASCII code.
type KeyCode uint16

const (
	KeyBackspace KeyCode = 0x08
	KeyTab       KeyCode = 0x09
	KeyEnter     KeyCode = 0x0D
	KeyPause     KeyCode = 0x13
	KeyEscape    KeyCode = 0x1B
	KeySpace     KeyCode = 0x20
	KeyLeft      KeyCode = 0x25
	KeyUp        KeyCode = 0x26
	KeyRight     KeyCode = 0x27
	KeyDown      KeyCode = 0x28
	KeyA         KeyCode = 0x41
	KeyC         KeyCode = 0x43
	KeyD         KeyCode = 0x44
	KeyP         KeyCode = 0x50
	KeyR         KeyCode = 0x52
	KeyS         KeyCode = 0x53
	KeyW         KeyCode = 0x57
	KeyF1        KeyCode = 0x70
	KeyUnknown   KeyCode = 0xFF

	maxKeys = 256
)

type MouseState struct {
	X       uint16
	Y       uint16
	Buttons [ButtonMaxButtons]bool
}

type KeyboardState struct {
	Keys [maxKeys]bool
}

// Input holds current and previous keyboard and mouse state and fires
// events on the bus when the state changes.
type Input struct {
	mu sync.Mutex

	bus              *EventBus
	keyboardCurrent  KeyboardState
	keyboardPrevious KeyboardState
	mouseCurrent     MouseState
	mousePrevious    MouseState
}

func NewInput(bus *EventBus) *Input {
	return &Input{bus: bus}
}

// Update copies current states to previous states. Call it once per frame,
// after everything that reads input for the frame.
func (in *Input) Update() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.keyboardPrevious = in.keyboardCurrent
	in.mousePrevious = in.mouseCurrent
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.keyboardCurrent.Keys[key%maxKeys]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.keyboardPrevious.Keys[key%maxKeys]
}

func (in *Input) IsButtonDown(button Button) bool {
	if button >= ButtonMaxButtons {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.mouseCurrent.Buttons[button]
}

func (in *Input) MousePosition() (int32, int32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return int32(in.mouseCurrent.X), int32(in.mouseCurrent.Y)
}

func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	in.mu.Lock()
	changed := in.keyboardCurrent.Keys[key%maxKeys] != pressed
	in.keyboardCurrent.Keys[key%maxKeys] = pressed
	in.mu.Unlock()
	if !changed {
		return
	}

	code := EventCodeKeyReleased
	if pressed {
		code = EventCodeKeyPressed
	}
	in.bus.Fire(EventContext{Type: code, Data: &KeyEvent{KeyCode: key}})
}

func (in *Input) ProcessButton(button Button, pressed bool) {
	if button >= ButtonMaxButtons {
		return
	}
	in.mu.Lock()
	changed := in.mouseCurrent.Buttons[button] != pressed
	in.mouseCurrent.Buttons[button] = pressed
	x, y := in.mouseCurrent.X, in.mouseCurrent.Y
	in.mu.Unlock()
	if !changed {
		return
	}

	code := EventCodeButtonReleased
	if pressed {
		code = EventCodeButtonPressed
	}
	in.bus.Fire(EventContext{Type: code, Data: &MouseEvent{Button: button, PosX: x, PosY: y}})
}

func (in *Input) ProcessMouseMove(x, y uint16) {
	in.mu.Lock()
	changed := in.mouseCurrent.X != x || in.mouseCurrent.Y != y
	in.mouseCurrent.X = x
	in.mouseCurrent.Y = y
	in.mu.Unlock()
	if !changed {
		return
	}
	in.bus.Fire(EventContext{Type: EventCodeMouseMoved, Data: &MouseEvent{PosX: x, PosY: y}})
}

func (in *Input) ProcessMouseWheel(zDelta int8) {
	in.bus.Fire(EventContext{Type: EventCodeMouseWheel, Data: &MouseEvent{Scroll: zDelta}})
}
