package headless

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

var ErrAlreadyCommitted = errors.New("command buffer already committed")

// Draw is one recorded draw call with the state bound when it was issued.
// Buffers are recorded by label.
type Draw struct {
	Pipeline         string
	CullMode         metadata.FaceCullMode
	DepthWrite       bool
	Primitive        metadata.PrimitiveType
	VertexStart      int
	VertexCount      int
	VertexBuffers    map[int]string
	FragmentBuffers  map[int]string
	VertexBytes      map[int][]byte
	FragmentTextures map[int]metadata.Texture
	FragmentSamplers map[int]metadata.SamplerState
}

type Dispatch struct {
	Pipeline              string
	Threadgroups          metadata.Size
	ThreadsPerThreadgroup metadata.Size
	Textures              map[int]metadata.Texture
	Bytes                 map[int][]byte
}

// Frame is everything one command buffer recorded.
type Frame struct {
	Index      int
	ClearColor metadata.ClearColor
	Draws      []Draw
	Dispatches []Dispatch
	Presented  bool
	// Uniforms is a copy of the buffer bound at the uniform index, taken at commit.
	Uniforms []byte
	Status   metadata.CommandBufferStatus
}

func (f Frame) clone() Frame {
	out := f
	out.Draws = slices.Clone(f.Draws)
	out.Dispatches = slices.Clone(f.Dispatches)
	out.Uniforms = slices.Clone(f.Uniforms)
	return out
}

type CommandQueue struct {
	device *Device
}

func (q *CommandQueue) CommandBuffer() (metadata.CommandBuffer, error) {
	return &CommandBuffer{device: q.device}, nil
}

type CommandBuffer struct {
	device *Device

	mu        sync.Mutex
	frame     *Frame
	uniforms  metadata.Buffer
	handlers  []func(metadata.CommandBuffer)
	status    metadata.CommandBufferStatus
	err       error
	committed bool

	pendingErr error
}

func (cb *CommandBuffer) ensureFrame() *Frame {
	if cb.frame == nil {
		cb.frame = &Frame{}
	}
	return cb.frame
}

func (cb *CommandBuffer) RenderCommandEncoder(pass *metadata.RenderPassDescriptor) (metadata.RenderCommandEncoder, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.committed {
		return nil, ErrAlreadyCommitted
	}
	cb.ensureFrame().ClearColor = pass.ClearColor
	return &RenderCommandEncoder{
		cb:               cb,
		vertexBuffers:    map[int]string{},
		fragmentBuffers:  map[int]string{},
		vertexBytes:      map[int][]byte{},
		fragmentTextures: map[int]metadata.Texture{},
		fragmentSamplers: map[int]metadata.SamplerState{},
	}, nil
}

func (cb *CommandBuffer) ComputeCommandEncoder() (metadata.ComputeCommandEncoder, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.committed {
		return nil, ErrAlreadyCommitted
	}
	cb.ensureFrame()
	return &ComputeCommandEncoder{
		cb:       cb,
		textures: map[int]metadata.Texture{},
		bytes:    map[int][]byte{},
	}, nil
}

func (cb *CommandBuffer) AddCompletedHandler(handler func(metadata.CommandBuffer)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.handlers = append(cb.handlers, handler)
}

func (cb *CommandBuffer) Present(drawable metadata.Drawable) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.ensureFrame().Presented = drawable != nil
}

func (cb *CommandBuffer) Commit() error {
	cb.mu.Lock()
	if cb.committed {
		cb.mu.Unlock()
		return ErrAlreadyCommitted
	}
	cb.committed = true
	cb.status = metadata.CommandBufferStatusCommitted
	frame := cb.ensureFrame()
	if cb.uniforms != nil {
		frame.Uniforms = slices.Clone(cb.uniforms.Contents())
	}
	cb.mu.Unlock()

	return cb.device.commit(cb)
}

func (cb *CommandBuffer) Status() metadata.CommandBufferStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.status
}

func (cb *CommandBuffer) Error() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.err
}

// complete marks the buffer finished and runs the completed handlers on the
// calling goroutine.
func (cb *CommandBuffer) complete(err error) {
	cb.mu.Lock()
	if err != nil {
		cb.status = metadata.CommandBufferStatusError
		cb.err = err
	} else {
		cb.status = metadata.CommandBufferStatusCompleted
	}
	status := cb.status
	handlers := cb.handlers
	cb.handlers = nil
	cb.mu.Unlock()

	cb.device.mu.Lock()
	cb.frame.Status = status
	cb.device.mu.Unlock()

	for _, h := range handlers {
		h(cb)
	}
}

type RenderCommandEncoder struct {
	cb *CommandBuffer

	pipeline         metadata.RenderPipelineState
	depth            metadata.DepthStencilState
	cullMode         metadata.FaceCullMode
	vertexBuffers    map[int]string
	fragmentBuffers  map[int]string
	vertexBytes      map[int][]byte
	fragmentTextures map[int]metadata.Texture
	fragmentSamplers map[int]metadata.SamplerState
	ended            bool
}

func (e *RenderCommandEncoder) SetRenderPipelineState(state metadata.RenderPipelineState) {
	e.pipeline = state
}

func (e *RenderCommandEncoder) SetDepthStencilState(state metadata.DepthStencilState) {
	e.depth = state
}

func (e *RenderCommandEncoder) SetCullMode(mode metadata.FaceCullMode) {
	e.cullMode = mode
}

func (e *RenderCommandEncoder) SetVertexBuffer(buffer metadata.Buffer, offset int, index int) {
	e.vertexBuffers[index] = buffer.Label()
	if index == metadata.UniformBufferIndex {
		e.cb.mu.Lock()
		e.cb.uniforms = buffer
		e.cb.mu.Unlock()
	}
}

func (e *RenderCommandEncoder) SetFragmentBuffer(buffer metadata.Buffer, offset int, index int) {
	e.fragmentBuffers[index] = buffer.Label()
}

func (e *RenderCommandEncoder) SetVertexBytes(data []byte, index int) {
	e.vertexBytes[index] = slices.Clone(data)
}

func (e *RenderCommandEncoder) SetFragmentTexture(texture metadata.Texture, index int) {
	e.fragmentTextures[index] = texture
}

func (e *RenderCommandEncoder) SetFragmentSamplerState(sampler metadata.SamplerState, index int) {
	e.fragmentSamplers[index] = sampler
}

func (e *RenderCommandEncoder) DrawPrimitives(primitive metadata.PrimitiveType, vertexStart int, vertexCount int) {
	if e.ended {
		core.LogWarn("draw recorded after EndEncoding")
		return
	}
	d := Draw{
		CullMode:         e.cullMode,
		Primitive:        primitive,
		VertexStart:      vertexStart,
		VertexCount:      vertexCount,
		VertexBuffers:    maps.Clone(e.vertexBuffers),
		FragmentBuffers:  maps.Clone(e.fragmentBuffers),
		VertexBytes:      maps.Clone(e.vertexBytes),
		FragmentTextures: maps.Clone(e.fragmentTextures),
		FragmentSamplers: maps.Clone(e.fragmentSamplers),
	}
	if e.pipeline != nil {
		d.Pipeline = e.pipeline.Label()
	}
	if e.depth != nil {
		d.DepthWrite = e.depth.Descriptor().DepthWriteEnabled
	}

	e.cb.mu.Lock()
	e.cb.frame.Draws = append(e.cb.frame.Draws, d)
	e.cb.mu.Unlock()
}

func (e *RenderCommandEncoder) EndEncoding() {
	e.ended = true
}

type ComputeCommandEncoder struct {
	cb *CommandBuffer

	pipeline metadata.ComputePipelineState
	textures map[int]metadata.Texture
	bytes    map[int][]byte
}

func (e *ComputeCommandEncoder) SetComputePipelineState(state metadata.ComputePipelineState) {
	e.pipeline = state
}

func (e *ComputeCommandEncoder) SetTexture(texture metadata.Texture, index int) {
	e.textures[index] = texture
}

func (e *ComputeCommandEncoder) SetBytes(data []byte, index int) {
	e.bytes[index] = slices.Clone(data)
}

func (e *ComputeCommandEncoder) DispatchThreadgroups(threadgroups metadata.Size, threadsPerThreadgroup metadata.Size) {
	d := Dispatch{
		Threadgroups:          threadgroups,
		ThreadsPerThreadgroup: threadsPerThreadgroup,
		Textures:              maps.Clone(e.textures),
		Bytes:                 maps.Clone(e.bytes),
	}
	if e.pipeline != nil {
		d.Pipeline = e.pipeline.Label()
	}
	e.cb.mu.Lock()
	e.cb.frame.Dispatches = append(e.cb.frame.Dispatches, d)
	e.cb.mu.Unlock()
}

func (e *ComputeCommandEncoder) EndEncoding() {}
