package renderer

import (
	"context"
	"encoding/binary"
	"errors"
	"image/color"
	m "math"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/renderer/geometry"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/spaghettifunk/livewall/engine/renderer/materials"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/spaghettifunk/livewall/engine/renderer/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testRig struct {
	device   *headless.Device
	surface  *headless.Surface
	renderer *Renderer
	clock    *fakeClock
}

func newRig(t *testing.T, deviceConfig headless.Config, config Config) *testRig {
	t.Helper()
	if deviceConfig.Width == 0 {
		deviceConfig.Width, deviceConfig.Height = 640, 480
	}
	backend, err := headless.NewBackend(deviceConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Shutdown() })

	clock := &fakeClock{now: time.Unix(1000, 0)}
	config.Now = clock.Now
	r, err := New(backend.Device(), backend.Surface(), config)
	require.NoError(t, err)

	return &testRig{
		device:   backend.HeadlessDevice(),
		surface:  backend.HeadlessSurface(),
		renderer: r,
		clock:    clock,
	}
}

func (rig *testRig) addCube(t *testing.T) *scene.Node {
	t.Helper()
	r := rig.renderer
	material, err := materials.StandardMaterial(r.Device(), r.Library(), r.Surface(), materials.DefaultEffect(), nil, nil)
	require.NoError(t, err)
	mesh, err := geometry.BuildMesh(r.Device(), "cube", geometry.Cuboid(1, 1, 1, geometry.UniformCuboidColors(color.White)))
	require.NoError(t, err)
	node := scene.NewMeshNode("cube", mesh, material)
	require.NoError(t, r.Scene().Root.AddChild(node))
	return node
}

type eventLog struct {
	mu     sync.Mutex
	events []string
	sizes  [][2]int
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) OnFrameReady(*Renderer)                          { l.add("ready") }
func (l *eventLog) WillRenderFrame(*Renderer, metadata.Drawable)    { l.add("will") }
func (l *eventLog) DidProduceDrawable(*Renderer, metadata.Drawable) { l.add("did") }
func (l *eventLog) DidChangeViewportSize(_ *Renderer, w, h int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sizes = append(l.sizes, [2]int{w, h})
}

func float32At(b []byte, offset int) float32 {
	return m.Float32frombits(binary.LittleEndian.Uint32(b[offset:]))
}

func TestPausedRendererNeverAcquires(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true}, Config{})
	rig.addCube(t)
	log := &eventLog{}
	rig.renderer.AddObserver(log)

	rig.renderer.SetPlaying(false)
	for i := 0; i < 10; i++ {
		require.NoError(t, rig.renderer.Draw(context.Background()))
	}
	assert.Zero(t, rig.renderer.Pool().Acquisitions())
	assert.Empty(t, rig.device.Frames())
	assert.Empty(t, log.snapshot())
	assert.Zero(t, rig.surface.Drawables())
}

func TestUnavailableSurfaceSkipsFrame(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true}, Config{})
	log := &eventLog{}
	rig.renderer.AddObserver(log)

	rig.surface.SetAvailable(false)
	require.NoError(t, rig.renderer.Draw(context.Background()))
	assert.Zero(t, rig.renderer.Pool().Acquisitions())
	assert.Equal(t, []string{"ready"}, log.snapshot())
}

func TestDrawRecordsFrame(t *testing.T) {
	rig := newRig(t, headless.Config{}, Config{})
	rig.addCube(t)
	rig.renderer.Scene().ClearColor = metadata.ClearColor{Red: 1, Alpha: 1}
	log := &eventLog{}
	rig.renderer.AddObserver(log)

	require.NoError(t, rig.renderer.Draw(context.Background()))
	rig.device.WaitIdle()

	frames := rig.device.Frames()
	require.Len(t, frames, 1)
	frame := frames[0]
	assert.Equal(t, metadata.CommandBufferStatusCompleted, frame.Status)
	assert.True(t, frame.Presented)
	assert.Equal(t, metadata.ClearColor{Red: 1, Alpha: 1}, frame.ClearColor)
	require.Len(t, frame.Draws, 1)
	assert.Equal(t, 36, frame.Draws[0].VertexCount)
	assert.True(t, frame.Draws[0].DepthWrite)

	assert.Equal(t, []string{"ready", "will", "did"}, log.snapshot())
	assert.Equal(t, 0, rig.renderer.Pool().InFlight())
	assert.Equal(t, uint64(1), rig.renderer.Stats().Frames)
	assert.Equal(t, 1, rig.renderer.Stats().DrawCalls)
}

func TestUniformContents(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true}, Config{})
	ctx := context.Background()

	require.NoError(t, rig.renderer.Draw(ctx))
	rig.clock.Advance(1500 * time.Millisecond)
	rig.renderer.SetTouchPoint(math.NewVec2(0.25, -0.5))
	require.NoError(t, rig.renderer.Draw(ctx))

	frames := rig.device.Frames()
	require.Len(t, frames, 2)

	first := frames[0].Uniforms
	require.Len(t, first, UniformsSize)
	assert.InDelta(t, 0, float32At(first, 0), 1e-6)
	assert.Equal(t, float32(-2), float32At(first, 8))
	assert.Equal(t, float32(-2), float32At(first, 12))
	assert.Equal(t, uint32(640), binary.LittleEndian.Uint32(first[16:]))
	assert.Equal(t, uint32(480), binary.LittleEndian.Uint32(first[20:]))

	second := frames[1].Uniforms
	assert.InDelta(t, 1.5, float32At(second, 0), 1e-6)
	assert.Equal(t, float32(0.25), float32At(second, 8))
	assert.Equal(t, float32(-0.5), float32At(second, 12))

	camera := rig.renderer.Scene().Camera
	view := camera.View()
	assert.Equal(t, view.Bytes(), second[32:96])
	assert.Equal(t, view.Inverse().Bytes(), second[96:160])
	assert.Equal(t, camera.ViewProjection().Bytes(), second[160:224])

	rig.renderer.ResetTouchPoint()
	assert.Equal(t, DefaultTouchPoint, rig.renderer.TouchPoint())
}

func TestFrameTimeSeedsDelta(t *testing.T) {
	rig := newRig(t, headless.Config{}, Config{})
	node := scene.NewNode("probe")
	var times []scene.FrameTime
	node.OnUpdate(func(_ *scene.Node, ft scene.FrameTime) { times = append(times, ft) })
	require.NoError(t, rig.renderer.Scene().Root.AddChild(node))

	rig.clock.Advance(time.Second)
	require.NoError(t, rig.renderer.Draw(context.Background()))
	rig.clock.Advance(250 * time.Millisecond)
	require.NoError(t, rig.renderer.Draw(context.Background()))

	require.Len(t, times, 2)
	assert.InDelta(t, 1.0, times[0].Elapsed, 1e-9)
	assert.InDelta(t, 0.0, times[0].Delta, 1e-9)
	assert.InDelta(t, 1.25, times[1].Elapsed, 1e-9)
	assert.InDelta(t, 0.25, times[1].Delta, 1e-9)
}

func TestFourthFrameWaitsForCompletion(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true}, Config{InFlightFrames: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, rig.renderer.Draw(ctx))
	}
	assert.Equal(t, 3, rig.renderer.Pool().InFlight())

	done := make(chan error, 1)
	go func() { done <- rig.renderer.Draw(ctx) }()

	select {
	case <-done:
		t.Fatal("fourth frame did not wait for a free slot")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, rig.device.CompleteNext())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fourth frame still blocked after a completion")
	}

	frames := rig.device.Frames()
	require.Len(t, frames, 4)
	// The freed slot is the first one, so frame 4 reuses frame 1's buffer.
	assert.Equal(t, uint64(4), rig.renderer.Pool().Acquisitions())
}

func TestDrawHonorsContext(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true}, Config{InFlightFrames: 2})
	ctx := context.Background()
	require.NoError(t, rig.renderer.Draw(ctx))
	require.NoError(t, rig.renderer.Draw(ctx))

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := rig.renderer.Draw(timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, rig.renderer.Pool().InFlight())
}

func TestDeviceLossLatches(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true}, Config{})
	ctx := context.Background()

	rig.device.FailNextCommit(errors.New("gpu hung"))
	require.NoError(t, rig.renderer.Draw(ctx))
	assert.False(t, rig.renderer.DeviceLost())

	require.True(t, rig.device.CompleteNext())
	assert.True(t, rig.renderer.DeviceLost())
	assert.Equal(t, 0, rig.renderer.Pool().InFlight())

	assert.ErrorIs(t, rig.renderer.Draw(ctx), core.ErrDeviceLost)
	assert.ErrorIs(t, rig.renderer.Draw(ctx), core.ErrDeviceLost)
	assert.Len(t, rig.device.Frames(), 1)
}

func TestResize(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true}, Config{})
	log := &eventLog{}
	remove := rig.renderer.AddObserver(log)

	var callback [2]int
	rig.renderer.OnViewportSizeChanged = append(rig.renderer.OnViewportSizeChanged, func(w, h int) {
		callback = [2]int{w, h}
	})

	camera := rig.renderer.Scene().Camera
	assert.InDelta(t, 640.0/480.0, camera.AspectRatio(), 1e-6)

	rig.renderer.Resize(1920, 1080)
	assert.InDelta(t, 1920.0/1080.0, camera.AspectRatio(), 1e-6)
	assert.Equal(t, [2]int{1920, 1080}, callback)
	assert.Equal(t, [][2]int{{1920, 1080}}, log.sizes)

	// A minimized window keeps the previous aspect ratio.
	rig.renderer.Resize(0, 0)
	assert.InDelta(t, 1920.0/1080.0, camera.AspectRatio(), 1e-6)

	remove()
	remove()
	rig.renderer.Resize(800, 600)
	assert.Len(t, log.sizes, 2)
}

func TestComputePass(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true, ComputeSupported: true, Width: 100, Height: 40},
		Config{Compute: ComputeConfig{Kernel: "waterEffect", Speed: 1, Intensity: 100}})
	require.True(t, rig.renderer.ComputeEnabled())
	require.NoError(t, rig.renderer.Draw(context.Background()))

	frames := rig.device.Frames()
	require.Len(t, frames, 1)
	require.Len(t, frames[0].Dispatches, 1)
	d := frames[0].Dispatches[0]
	assert.Equal(t, "waterEffect", d.Pipeline)
	assert.Equal(t, metadata.Size{Width: 7, Height: 3, Depth: 1}, d.Threadgroups)
	assert.Equal(t, metadata.Size{Width: 16, Height: 16, Depth: 1}, d.ThreadsPerThreadgroup)
	assert.Len(t, d.Bytes[0], UniformsSize)
	assert.Equal(t, float32(100), float32At(d.Bytes[1], 4))
	assert.NotNil(t, d.Textures[0])
}

func TestComputeUnsupportedIsDisabled(t *testing.T) {
	rig := newRig(t, headless.Config{ManualCompletion: true}, Config{Compute: ComputeConfig{Kernel: "waterEffect"}})
	assert.False(t, rig.renderer.ComputeEnabled())
	require.NoError(t, rig.renderer.Draw(context.Background()))
	assert.Empty(t, rig.device.Frames()[0].Dispatches)
}

func TestDrain(t *testing.T) {
	rig := newRig(t, headless.Config{CompletionDelay: 5 * time.Millisecond}, Config{})
	for i := 0; i < 3; i++ {
		require.NoError(t, rig.renderer.Draw(context.Background()))
	}
	require.NoError(t, rig.renderer.Drain(context.Background()))
	assert.Equal(t, 0, rig.renderer.Pool().InFlight())
}

func TestParseBackendType(t *testing.T) {
	b, err := ParseBackendType("Headless")
	require.NoError(t, err)
	assert.Equal(t, Headless, b)

	b, err = ParseBackendType("")
	require.NoError(t, err)
	assert.Equal(t, Vulkan, b)

	_, err = ParseBackendType("metal")
	assert.ErrorIs(t, err, core.ErrUnknownBackend)
}

func TestUniformsLayout(t *testing.T) {
	u := Uniforms{
		Time:           3,
		TouchPoint:     math.NewVec2(1, 2),
		Resolution:     [2]int32{10, 20},
		View:           math.NewMat4Translation(math.NewVec3(1, 2, 3)),
		InverseView:    math.NewMat4Identity(),
		ViewProjection: math.NewMat4Scale(math.NewVec3(2, 2, 2)),
	}
	b := u.Bytes()
	require.Len(t, b, UniformsSize)
	assert.Equal(t, float32(3), float32At(b, 0))
	assert.Equal(t, []byte{0, 0, 0, 0}, b[4:8])
	assert.Equal(t, float32(2), float32At(b, 12))
	assert.Equal(t, uint32(20), binary.LittleEndian.Uint32(b[20:]))
	assert.Equal(t, float32(3), float32At(b, 32+14*4))
	assert.Equal(t, float32(1), float32At(b, 96))
	assert.Equal(t, float32(2), float32At(b, 160))
}
