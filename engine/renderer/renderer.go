package renderer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	m "math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/renderer/buffers"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/spaghettifunk/livewall/engine/renderer/scene"
)

const (
	computeThreadgroupWidth  = 16
	computeThreadgroupHeight = 16
)

// Observer receives frame lifecycle events. DidProduceDrawable runs on the
// goroutine that completed the command buffer, every other method runs on
// the render timeline.
type Observer interface {
	OnFrameReady(r *Renderer)
	WillRenderFrame(r *Renderer, drawable metadata.Drawable)
	DidProduceDrawable(r *Renderer, drawable metadata.Drawable)
	DidChangeViewportSize(r *Renderer, width, height int)
}

// NopObserver can be embedded to implement only some Observer methods.
type NopObserver struct{}

func (NopObserver) OnFrameReady(*Renderer)                          {}
func (NopObserver) WillRenderFrame(*Renderer, metadata.Drawable)    {}
func (NopObserver) DidProduceDrawable(*Renderer, metadata.Drawable) {}
func (NopObserver) DidChangeViewportSize(*Renderer, int, int)       {}

type ComputeConfig struct {
	// Kernel is the compute entry point, empty disables the pass.
	Kernel string
	// Input is bound at texture index 1, optional.
	Input     metadata.Texture
	Speed     float32
	Intensity float32
}

type Config struct {
	InFlightFrames int
	Compute        ComputeConfig
	// Now overrides the time source, used by tests.
	Now func() time.Time
}

type Stats struct {
	Frames       uint64
	DrawCalls    int
	Acquisitions uint64
	InFlight     int
	FPS          float64
	FrameTime    float64
}

// Renderer drives one frame per Draw call: it paces the CPU against the GPU
// through the slot pool, writes the frame uniforms and encodes the scene.
type Renderer struct {
	device  metadata.Device
	surface metadata.Surface
	library metadata.Library
	queue   metadata.CommandQueue
	pool    *buffers.Manager
	depth   scene.DepthStates
	scene   *scene.Scene
	fps     *core.FPSCounter

	compute       metadata.ComputePipelineState
	computeConfig ComputeConfig

	now           func() time.Time
	creationTime  time.Time
	lastFrameTime time.Time
	frames        uint64
	lastDrawCalls int

	playing    atomic.Bool
	deviceLost atomic.Bool

	touchMu    sync.Mutex
	touchPoint math.Vec2

	observersMu sync.RWMutex
	observers   []*observerEntry

	// OnViewportSizeChanged callbacks run after the camera was updated.
	OnViewportSizeChanged []func(width, height int)
}

type observerEntry struct {
	observer Observer
}

func New(device metadata.Device, surface metadata.Surface, config Config) (*Renderer, error) {
	if config.InFlightFrames <= 0 {
		config.InFlightFrames = buffers.DefaultInFlightCount
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	library, err := device.DefaultLibrary()
	if err != nil {
		return nil, fmt.Errorf("failed to load the default library: %w", err)
	}
	queue, err := device.NewCommandQueue()
	if err != nil {
		return nil, fmt.Errorf("failed to create the command queue: %w", err)
	}
	pool, err := buffers.NewManager(config.InFlightFrames, func(index int) (metadata.Buffer, error) {
		return device.NewBuffer(UniformsSize, fmt.Sprintf("uniforms-%d", index))
	})
	if err != nil {
		return nil, err
	}
	enabled, err := device.NewDepthStencilState(metadata.DepthStencilDescriptor{
		DepthCompareFunction: metadata.CompareFunctionLess,
		DepthWriteEnabled:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create depth state: %w", err)
	}
	disabled, err := device.NewDepthStencilState(metadata.DepthStencilDescriptor{
		DepthCompareFunction: metadata.CompareFunctionLess,
		DepthWriteEnabled:    false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create depth state: %w", err)
	}

	r := &Renderer{
		device:        device,
		surface:       surface,
		library:       library,
		queue:         queue,
		pool:          pool,
		depth:         scene.DepthStates{Enabled: enabled, Disabled: disabled},
		scene:         scene.NewScene(),
		fps:           core.NewFPSCounter(core.DefaultFPSSampleCount),
		computeConfig: config.Compute,
		now:           config.Now,
		touchPoint:    DefaultTouchPoint,
	}
	r.creationTime = r.now()
	r.playing.Store(true)

	if w, h := surface.DrawableSize(); w > 0 && h > 0 {
		r.scene.Camera.SetAspectRatio(float32(w) / float32(h))
	}
	if config.Compute.Kernel != "" {
		r.setupCompute(config.Compute.Kernel)
	}
	return r, nil
}

// setupCompute disables the compute pass on any failure, the frame loop
// does not depend on it.
func (r *Renderer) setupCompute(kernel string) {
	fn, err := r.library.Function(kernel)
	if err != nil {
		core.LogWarn("compute kernel %s unavailable: %s", kernel, err)
		return
	}
	state, err := r.device.NewComputePipelineState(fn)
	if err != nil {
		core.LogWarn("compute pass disabled: %s", err)
		return
	}
	r.compute = state
}

func (r *Renderer) Device() metadata.Device {
	return r.device
}

func (r *Renderer) Library() metadata.Library {
	return r.library
}

func (r *Renderer) Surface() metadata.Surface {
	return r.surface
}

func (r *Renderer) Scene() *scene.Scene {
	return r.scene
}

func (r *Renderer) Pool() *buffers.Manager {
	return r.pool
}

func (r *Renderer) ComputeEnabled() bool {
	return r.compute != nil
}

func (r *Renderer) SetPlaying(playing bool) {
	r.playing.Store(playing)
}

func (r *Renderer) IsPlaying() bool {
	return r.playing.Load()
}

func (r *Renderer) DeviceLost() bool {
	return r.deviceLost.Load()
}

// SetTouchPoint takes the pointer position in drawable pixels.
func (r *Renderer) SetTouchPoint(point math.Vec2) {
	r.touchMu.Lock()
	r.touchPoint = point
	r.touchMu.Unlock()
}

func (r *Renderer) ResetTouchPoint() {
	r.SetTouchPoint(DefaultTouchPoint)
}

func (r *Renderer) TouchPoint() math.Vec2 {
	r.touchMu.Lock()
	defer r.touchMu.Unlock()
	return r.touchPoint
}

// AddObserver registers o until the returned function is called. The
// renderer does not own the observer.
func (r *Renderer) AddObserver(o Observer) (remove func()) {
	entry := &observerEntry{observer: o}
	r.observersMu.Lock()
	r.observers = append(r.observers, entry)
	r.observersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.observersMu.Lock()
			defer r.observersMu.Unlock()
			for i, e := range r.observers {
				if e == entry {
					r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (r *Renderer) notify(fn func(o Observer)) {
	r.observersMu.RLock()
	entries := make([]*observerEntry, len(r.observers))
	copy(entries, r.observers)
	r.observersMu.RUnlock()

	for _, e := range entries {
		fn(e.observer)
	}
}

// Resize must be called on the render timeline with the new drawable size in pixels.
func (r *Renderer) Resize(width, height int) {
	if height > 0 {
		r.scene.Camera.SetAspectRatio(float32(width) / float32(height))
	}
	for _, fn := range r.OnViewportSizeChanged {
		fn(width, height)
	}
	r.notify(func(o Observer) { o.DidChangeViewportSize(r, width, height) })
}

func (r *Renderer) Stats() Stats {
	return Stats{
		Frames:       r.frames,
		DrawCalls:    r.lastDrawCalls,
		Acquisitions: r.pool.Acquisitions(),
		InFlight:     r.pool.InFlight(),
		FPS:          r.fps.FPS(),
		FrameTime:    r.fps.FrameTime(),
	}
}

// Draw renders one frame. A paused renderer or a surface that cannot be
// drawn to skips the frame and returns nil. ErrDeviceLost is returned once
// the GPU reported a failed command buffer.
func (r *Renderer) Draw(ctx context.Context) error {
	if r.deviceLost.Load() {
		return core.ErrDeviceLost
	}
	if !r.playing.Load() {
		return nil
	}

	r.notify(func(o Observer) { o.OnFrameReady(r) })

	pass := r.surface.CurrentRenderPassDescriptor()
	if pass == nil {
		return nil
	}
	drawable := r.surface.CurrentDrawable()
	if drawable == nil {
		return nil
	}

	slot, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := r.encodeFrame(slot, pass, drawable); err != nil {
		if abandonErr := r.pool.Abandon(slot); abandonErr != nil {
			core.LogError("failed to return slot %d: %s", slot.Index(), abandonErr)
		}
		return err
	}
	return nil
}

func (r *Renderer) encodeFrame(slot *buffers.Slot, pass *metadata.RenderPassDescriptor, drawable metadata.Drawable) error {
	now := r.now()
	if r.lastFrameTime.IsZero() {
		r.lastFrameTime = now
	}
	frameTime := scene.FrameTime{
		Elapsed: now.Sub(r.creationTime).Seconds(),
		Delta:   now.Sub(r.lastFrameTime).Seconds(),
	}
	r.lastFrameTime = now

	r.writeUniforms(slot.Buffer(), float32(frameTime.Elapsed))

	r.notify(func(o Observer) { o.WillRenderFrame(r, drawable) })

	commandBuffer, err := r.queue.CommandBuffer()
	if err != nil {
		return fmt.Errorf("failed to create command buffer: %w", err)
	}

	pass.ClearColor = r.scene.ClearColor
	encoder, err := commandBuffer.RenderCommandEncoder(pass)
	if err != nil {
		return fmt.Errorf("failed to begin render pass: %w", err)
	}
	encoder.SetDepthStencilState(r.depth.Enabled)
	encoder.SetVertexBuffer(slot.Buffer(), 0, metadata.UniformBufferIndex)
	encoder.SetFragmentBuffer(slot.Buffer(), 0, metadata.UniformBufferIndex)

	r.fps.NewFrame(frameTime.Elapsed)
	r.scene.Update(frameTime)
	draws, err := r.scene.Render(encoder, slot.Buffer(), r.depth)
	encoder.EndEncoding()
	if err != nil {
		return err
	}

	if r.compute != nil {
		r.encodeCompute(commandBuffer, drawable, slot.Buffer())
	}

	if err := r.pool.Submit(slot); err != nil {
		return err
	}
	commandBuffer.AddCompletedHandler(func(cb metadata.CommandBuffer) {
		if cb.Status() == metadata.CommandBufferStatusError {
			if !r.deviceLost.Swap(true) {
				core.LogError("command buffer failed: %v", cb.Error())
			}
		}
		r.notify(func(o Observer) { o.DidProduceDrawable(r, drawable) })
		if err := r.pool.Release(slot); err != nil {
			core.LogError("failed to release slot %d: %s", slot.Index(), err)
		}
	})
	commandBuffer.Present(drawable)

	r.frames++
	r.lastDrawCalls = draws

	// The completed handler runs even when Commit fails, so the slot is
	// not abandoned here.
	if err := commandBuffer.Commit(); err != nil {
		if errors.Is(err, core.ErrDeviceLost) {
			r.deviceLost.Store(true)
		}
		return fmt.Errorf("failed to commit frame %d: %w", r.frames, err)
	}
	return nil
}

func (r *Renderer) writeUniforms(buffer metadata.Buffer, elapsed float32) {
	width, height := r.surface.DrawableSize()
	camera := r.scene.Camera
	view := camera.View()

	u := Uniforms{
		Time:           elapsed,
		TouchPoint:     r.TouchPoint(),
		Resolution:     [2]int32{int32(width), int32(height)},
		View:           view,
		InverseView:    view.Inverse(),
		ViewProjection: camera.ViewProjection(),
	}
	u.WriteTo(buffer.Contents())
}

func (r *Renderer) encodeCompute(commandBuffer metadata.CommandBuffer, drawable metadata.Drawable, uniforms metadata.Buffer) {
	encoder, err := commandBuffer.ComputeCommandEncoder()
	if err != nil {
		core.LogWarn("compute pass skipped: %s", err)
		return
	}
	target := drawable.Texture()

	params := make([]byte, 8)
	binary.LittleEndian.PutUint32(params[0:], m.Float32bits(r.computeConfig.Speed))
	binary.LittleEndian.PutUint32(params[4:], m.Float32bits(r.computeConfig.Intensity))

	encoder.SetComputePipelineState(r.compute)
	encoder.SetBytes(uniforms.Contents()[:UniformsSize], 0)
	encoder.SetBytes(params, 1)
	encoder.SetTexture(target, 0)
	if r.computeConfig.Input != nil {
		encoder.SetTexture(r.computeConfig.Input, 1)
	}
	groups := metadata.Size{
		Width:  (target.Width() + computeThreadgroupWidth - 1) / computeThreadgroupWidth,
		Height: (target.Height() + computeThreadgroupHeight - 1) / computeThreadgroupHeight,
		Depth:  1,
	}
	encoder.DispatchThreadgroups(groups, metadata.Size{Width: computeThreadgroupWidth, Height: computeThreadgroupHeight, Depth: 1})
	encoder.EndEncoding()
}

// Drain blocks until every in-flight frame completed.
func (r *Renderer) Drain(ctx context.Context) error {
	slots := make([]*buffers.Slot, 0, r.pool.Count())
	defer func() {
		for _, s := range slots {
			_ = r.pool.Abandon(s)
		}
	}()
	for n, i := r.pool.Count(), 0; i < n; i++ {
		s, err := r.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		slots = append(slots, s)
	}
	return nil
}
