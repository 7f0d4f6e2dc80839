// Package headless implements the GPU interfaces without a GPU. Every
// command is recorded so frames can be inspected after they completed.
package headless

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/spaghettifunk/livewall/engine/systems"
)

type Config struct {
	Name   string
	Width  int
	Height int
	// Functions defaults to DefaultFunctions.
	Functions []FunctionSpec
	// ManualCompletion holds committed command buffers until CompleteNext.
	ManualCompletion bool
	Workers          int
	ComputeSupported bool
	// CompletionDelay simulates GPU latency in asynchronous mode.
	CompletionDelay time.Duration
}

type Device struct {
	config   Config
	library  *Library
	jobs     *systems.JobSystem
	inFlight sync.WaitGroup

	mu       sync.Mutex
	frames   []*Frame
	pending  []*CommandBuffer
	failNext error
}

func NewDevice(config Config) (*Device, error) {
	if config.Name == "" {
		config.Name = "headless"
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.Functions == nil {
		config.Functions = DefaultFunctions()
	}
	d := &Device{
		config:  config,
		library: NewLibrary(config.Functions...),
	}
	if !config.ManualCompletion {
		jobs, err := systems.NewJobSystem(config.Workers, 16)
		if err != nil {
			return nil, err
		}
		d.jobs = jobs
	}
	return d, nil
}

func (d *Device) Name() string {
	return d.config.Name
}

func (d *Device) NewBuffer(length int, label string) (metadata.Buffer, error) {
	if length <= 0 {
		return nil, fmt.Errorf("buffer %q: invalid length %d", label, length)
	}
	return &Buffer{label: label, data: make([]byte, length)}, nil
}

func (d *Device) NewBufferWithBytes(data []byte, label string) (metadata.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("buffer %q: no data", label)
	}
	return &Buffer{label: label, data: slices.Clone(data)}, nil
}

func (d *Device) NewTexture(desc metadata.TextureDescriptor, pixels []byte) (metadata.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || desc.PixelFormat.BytesPerPixel() == 0 {
		return nil, fmt.Errorf("texture %q: invalid descriptor %dx%d", desc.Label, desc.Width, desc.Height)
	}
	t := newTexture(desc)
	if pixels != nil {
		if err := t.ReplaceRegion(pixels); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (d *Device) NewSamplerState(desc metadata.SamplerDescriptor) (metadata.SamplerState, error) {
	return &SamplerState{desc: desc}, nil
}

func (d *Device) NewDepthStencilState(desc metadata.DepthStencilDescriptor) (metadata.DepthStencilState, error) {
	return &DepthStencilState{desc: desc}, nil
}

func (d *Device) NewRenderPipelineState(desc *metadata.RenderPipelineDescriptor) (metadata.RenderPipelineState, error) {
	vertex, ok := desc.VertexFunction.(*Function)
	if !ok || vertex.Stage() != metadata.ShaderStageVertex {
		return nil, fmt.Errorf("%w: %q is not a vertex function", core.ErrPipelineCompile, functionName(desc.VertexFunction))
	}
	fragment, ok := desc.FragmentFunction.(*Function)
	if !ok || fragment.Stage() != metadata.ShaderStageFragment {
		return nil, fmt.Errorf("%w: %q is not a fragment function", core.ErrPipelineCompile, functionName(desc.FragmentFunction))
	}
	if err := validateVertexLayout(vertex, desc.VertexDescriptor); err != nil {
		return nil, err
	}
	return &RenderPipelineState{desc: *desc}, nil
}

func functionName(fn metadata.Function) string {
	if fn == nil {
		return ""
	}
	return fn.Name()
}

func (d *Device) NewComputePipelineState(kernel metadata.Function) (metadata.ComputePipelineState, error) {
	if !d.config.ComputeSupported {
		return nil, core.ErrComputeUnsupported
	}
	if kernel == nil || kernel.Stage() != metadata.ShaderStageKernel {
		return nil, fmt.Errorf("%w: %q is not a kernel", core.ErrPipelineCompile, functionName(kernel))
	}
	return &ComputePipelineState{kernel: kernel.Name()}, nil
}

func (d *Device) NewCommandQueue() (metadata.CommandQueue, error) {
	return &CommandQueue{device: d}, nil
}

func (d *Device) DefaultLibrary() (metadata.Library, error) {
	return d.library, nil
}

// Library gives tests access to Register.
func (d *Device) Library() *Library {
	return d.library
}

// FailNextCommit makes the next committed command buffer complete with err.
func (d *Device) FailNextCommit(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = err
}

func (d *Device) commit(cb *CommandBuffer) error {
	d.mu.Lock()
	cb.frame.Index = len(d.frames)
	d.frames = append(d.frames, cb.frame)
	failure := d.failNext
	d.failNext = nil
	d.inFlight.Add(1)
	if d.config.ManualCompletion {
		cb.pendingErr = failure
		d.pending = append(d.pending, cb)
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	err := d.jobs.Submit(systems.JobTask{
		Name: fmt.Sprintf("frame-%d", cb.frame.Index),
		OnStart: func(_ interface{}, _ chan<- interface{}) error {
			if d.config.CompletionDelay > 0 {
				time.Sleep(d.config.CompletionDelay)
			}
			return nil
		},
		OnCompletionCallback: func() {
			cb.complete(failure)
			d.inFlight.Done()
		},
	})
	if err != nil {
		cb.complete(err)
		d.inFlight.Done()
		return err
	}
	return nil
}

// CompleteNext completes the oldest held command buffer on the calling
// goroutine. It returns false when nothing is pending.
func (d *Device) CompleteNext() bool {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return false
	}
	cb := d.pending[0]
	d.pending = d.pending[1:]
	d.mu.Unlock()

	cb.complete(cb.pendingErr)
	d.inFlight.Done()
	return true
}

func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Frames returns copies of every committed frame in commit order.
func (d *Device) Frames() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Frame, len(d.frames))
	for i, f := range d.frames {
		out[i] = f.clone()
	}
	return out
}

// WaitIdle completes held command buffers and waits for the asynchronous ones.
func (d *Device) WaitIdle() {
	for d.CompleteNext() {
	}
	d.inFlight.Wait()
}

func (d *Device) Destroy() {
	d.WaitIdle()
	if d.jobs != nil {
		if err := d.jobs.Shutdown(); err != nil {
			core.LogError("failed to stop headless workers: %s", err)
		}
	}
}
