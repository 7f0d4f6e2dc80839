package core

import "sync"

type EventCode uint16

// System internal event codes. Application should use codes beyond 255.
const (
	// Shuts the application down on the next frame.
	EventCodeApplicationQuit EventCode = 0x01
	// Data: *KeyEvent
	EventCodeKeyPressed EventCode = 0x02
	// Data: *KeyEvent
	EventCodeKeyReleased EventCode = 0x03
	// Data: *MouseEvent
	EventCodeButtonPressed EventCode = 0x04
	// Data: *MouseEvent
	EventCodeButtonReleased EventCode = 0x05
	// Data: *MouseEvent with PosX and PosY in framebuffer pixels.
	EventCodeMouseMoved EventCode = 0x06
	// Data: *MouseEvent with Scroll set.
	EventCodeMouseWheel EventCode = 0x07
	// Data: *SystemEvent
	EventCodeResized EventCode = 0x08

	MaxEventCode EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	PosX   uint16
	PosY   uint16
	Scroll int8
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

// FnOnEvent should return true if the event was handled. Handled events are
// not passed on to listeners registered later.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously to listeners in registration order.
type EventBus struct {
	mu         sync.RWMutex
	registered map[EventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]registeredEvent),
	}
}

// Register listens for code. A listener can only be registered once per code;
// duplicates return false.
func (b *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

func (b *EventBus) Unregister(code EventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire returns true if one of the listeners handled the event.
func (b *EventBus) Fire(context EventContext) bool {
	b.mu.RLock()
	events := append([]registeredEvent(nil), b.registered[context.Type]...)
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(context) {
			return true
		}
	}
	return false
}

func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = make(map[EventCode][]registeredEvent)
}
