package core

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDispatchOrderAndHandled(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	a, b := new(int), new(int)
	require.True(t, bus.Register(EventCodeKeyPressed, a, func(EventContext) bool {
		calls = append(calls, "a")
		return false
	}))
	require.True(t, bus.Register(EventCodeKeyPressed, b, func(EventContext) bool {
		calls = append(calls, "b")
		return true
	}))
	assert.False(t, bus.Register(EventCodeKeyPressed, a, func(EventContext) bool { return false }))

	assert.True(t, bus.Fire(EventContext{Type: EventCodeKeyPressed}))
	assert.Equal(t, []string{"a", "b"}, calls)

	require.True(t, bus.Unregister(EventCodeKeyPressed, b))
	assert.False(t, bus.Unregister(EventCodeKeyPressed, b))
	assert.False(t, bus.Fire(EventContext{Type: EventCodeKeyPressed}))
	assert.False(t, bus.Fire(EventContext{Type: EventCodeResized}))
}

func TestInputFiresOnlyOnChange(t *testing.T) {
	bus := NewEventBus()
	in := NewInput(bus)

	var moves []MouseEvent
	bus.Register(EventCodeMouseMoved, t, func(ctx EventContext) bool {
		moves = append(moves, *ctx.Data.(*MouseEvent))
		return true
	})
	var keys int
	bus.Register(EventCodeKeyPressed, t, func(EventContext) bool {
		keys++
		return true
	})

	in.ProcessMouseMove(10, 20)
	in.ProcessMouseMove(10, 20)
	in.ProcessKey(KeySpace, true)
	in.ProcessKey(KeySpace, true)

	require.Len(t, moves, 1)
	assert.Equal(t, uint16(10), moves[0].PosX)
	assert.Equal(t, uint16(20), moves[0].PosY)
	assert.Equal(t, 1, keys)
	assert.True(t, in.IsKeyDown(KeySpace))
	assert.False(t, in.WasKeyDown(KeySpace))

	in.Update()
	assert.True(t, in.WasKeyDown(KeySpace))
	x, y := in.MousePosition()
	assert.Equal(t, int32(10), x)
	assert.Equal(t, int32(20), y)
}

func TestClockWithSource(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewClockWithSource(func() time.Time { return now })

	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	now = now.Add(1500 * time.Millisecond)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)
}

func TestFPSCounter(t *testing.T) {
	c := NewFPSCounter(DefaultFPSSampleCount)
	assert.Zero(t, c.FPS())

	for i := 0; i < 250; i++ {
		c.NewFrame(float64(i) / 60.0)
	}
	assert.InDelta(t, 60.0, c.FPS(), 1e-6)
	assert.InDelta(t, 1000.0/60.0, c.FrameTime(), 1e-6)
	assert.Equal(t, uint64(250), c.Frames())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": DebugLevel,
		"INFO":  InfoLevel,
		"warn":  WarnLevel,
		"error": ErrorLevel,
		"fatal": FatalLevel,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want.String(), got.String())
	}
	_, err := ParseLogLevel("loud")
	assert.ErrorIs(t, err, ErrUnsupportedConfig)
}

func TestLogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() {
		SetLogLevel(DebugLevel)
		SetLogOutput(os.Stderr)
	})

	SetLogLevel(WarnLevel)
	LogInfo("hidden %d", 1)
	assert.Empty(t, buf.String())

	LogWarn("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}
