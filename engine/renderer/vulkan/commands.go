package vulkan

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/spaghettifunk/livewall/engine/systems"
)

var ErrAlreadyCommitted = errors.New("command buffer already committed")

type CommandQueue struct {
	device *Device
}

// CommandBuffer records into the command buffer of the current frame in
// flight. Only one can be recording at a time.
func (q *CommandQueue) CommandBuffer() (metadata.CommandBuffer, error) {
	vc := q.device.context
	frame := vc.frame()
	frame.wait()

	if err := frame.Descriptors.Reset(vc); err != nil {
		return nil, err
	}
	if err := frame.CommandBuffer.Reset(); err != nil {
		return nil, err
	}
	if err := frame.CommandBuffer.Begin(true, false, false); err != nil {
		return nil, err
	}
	return &CommandBuffer{
		device: q.device,
		frame:  frame,
		status: metadata.CommandBufferStatusNotEnqueued,
	}, nil
}

type CommandBuffer struct {
	device *Device
	frame  *VulkanFrame

	encoder  *RenderCommandEncoder
	drawable *Drawable

	mu        sync.Mutex
	handlers  []func(metadata.CommandBuffer)
	status    metadata.CommandBufferStatus
	err       error
	committed bool
}

func (cb *CommandBuffer) RenderCommandEncoder(pass *metadata.RenderPassDescriptor) (metadata.RenderCommandEncoder, error) {
	if cb.committed {
		return nil, ErrAlreadyCommitted
	}
	vc := cb.device.context
	if !vc.imageAcquired || vc.Swapchain == nil {
		return nil, core.ErrNoDrawable
	}
	fb := vc.Swapchain.Framebuffers[vc.ImageIndex]
	vc.MainRenderpass.RenderpassBegin(cb.frame.CommandBuffer, fb, pass.ClearColor, float32(pass.ClearDepth))
	cb.encoder = &RenderCommandEncoder{
		cb:       cb,
		vertex:   map[int]vertexBinding{},
		bindings: &drawBindings{},
	}
	return cb.encoder, nil
}

func (cb *CommandBuffer) ComputeCommandEncoder() (metadata.ComputeCommandEncoder, error) {
	return nil, core.ErrComputeUnsupported
}

func (cb *CommandBuffer) AddCompletedHandler(handler func(metadata.CommandBuffer)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.handlers = append(cb.handlers, handler)
}

func (cb *CommandBuffer) Present(drawable metadata.Drawable) {
	if d, ok := drawable.(*Drawable); ok {
		cb.drawable = d
	}
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

// Commit submits the frame and presents the drawable. The completed
// handlers run on a job system worker once the frame's fence signaled, or
// right away with an error status when the submission failed.
func (cb *CommandBuffer) Commit() error {
	if cb.committed {
		return ErrAlreadyCommitted
	}
	cb.committed = true
	vc := cb.device.context
	frame := cb.frame

	cb.mu.Lock()
	cb.status = metadata.CommandBufferStatusCommitted
	cb.mu.Unlock()

	if cb.encoder != nil && !cb.encoder.ended {
		cb.encoder.EndEncoding()
	}

	done := make(chan struct{})
	frame.done = done
	if vc.imageAcquired && int(vc.ImageIndex) < len(vc.ImagesInFlight) {
		vc.ImagesInFlight[vc.ImageIndex] = done
	}

	err := cb.submit()
	if err != nil {
		cb.finish(err, done)
	} else {
		cb.awaitCompletion(done)
	}

	var presentErr error
	if err == nil && cb.drawable != nil {
		presentErr = cb.device.surface.present(cb.drawable)
	} else {
		vc.imageAcquired = false
		cb.device.surface.drawable = nil
	}
	vc.CurrentFrame = (vc.CurrentFrame + 1) % uint32(len(vc.Frames))

	if err != nil {
		return err
	}
	return presentErr
}

func (cb *CommandBuffer) submit() error {
	vc := cb.device.context
	frame := cb.frame
	if err := frame.CommandBuffer.End(); err != nil {
		return err
	}
	if err := frame.Fence.FenceReset(vc); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{frame.CommandBuffer.Handle},
	}
	if vc.imageAcquired {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{frame.ImageAvailable}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if cb.drawable != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{frame.QueueComplete}
	}

	err := vc.Locks.SafeQueueCall(uint32(vc.Device.GraphicsQueueIndex), func() error {
		return checkResult(vk.QueueSubmit(vc.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, frame.Fence.Handle), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	frame.CommandBuffer.UpdateSubmitted()
	return nil
}

func (cb *CommandBuffer) awaitCompletion(done chan struct{}) {
	vc := cb.device.context
	fence := cb.frame.Fence
	var waitErr error
	job := systems.JobTask{
		Name: "frame-completion",
		OnStart: func(interface{}, chan<- interface{}) error {
			return fence.FenceWait(vc, vk.MaxUint64)
		},
		OnFailure: func(err error) {
			waitErr = err
		},
		OnCompletionCallback: func() {
			cb.finish(waitErr, done)
		},
	}
	if err := vc.Jobs.Submit(job); err != nil {
		// The job system is gone during shutdown, wait inline.
		cb.finish(fence.FenceWait(vc, vk.MaxUint64), done)
	}
}

func (cb *CommandBuffer) finish(err error, done chan struct{}) {
	cb.mu.Lock()
	if err != nil {
		cb.status = metadata.CommandBufferStatusError
		cb.err = err
	} else {
		cb.status = metadata.CommandBufferStatusCompleted
	}
	handlers := cb.handlers
	cb.handlers = nil
	cb.mu.Unlock()

	cb.frame.CommandBuffer.State = CommandBufferStateReady
	for _, h := range handlers {
		h(cb)
	}
	close(done)
}

type vertexBinding struct {
	buffer *VulkanBuffer
	offset int
}

// RenderCommandEncoder tracks bound state and flushes it into a pipeline
// variant, a descriptor set and push constants at each draw.
type RenderCommandEncoder struct {
	cb *CommandBuffer

	pipeline *RenderPipelineState
	depth    metadata.DepthStencilDescriptor
	cullMode metadata.FaceCullMode

	vertex   map[int]vertexBinding
	bindings *drawBindings
	model    [modelMatrixSize]byte

	bound *VulkanPipeline
	ended bool
	err   error
}

func (e *RenderCommandEncoder) fail(err error) {
	if e.err == nil {
		e.err = err
		core.LogError("render encoder: %s", err)
	}
}

func (e *RenderCommandEncoder) SetRenderPipelineState(state metadata.RenderPipelineState) {
	p, ok := state.(*RenderPipelineState)
	if !ok {
		e.fail(fmt.Errorf("foreign pipeline state %T", state))
		return
	}
	e.pipeline = p
}

func (e *RenderCommandEncoder) SetDepthStencilState(state metadata.DepthStencilState) {
	if state != nil {
		e.depth = state.Descriptor()
	}
}

func (e *RenderCommandEncoder) SetCullMode(mode metadata.FaceCullMode) {
	e.cullMode = mode
}

func (e *RenderCommandEncoder) SetVertexBuffer(buffer metadata.Buffer, offset int, index int) {
	b, ok := buffer.(*VulkanBuffer)
	if !ok {
		e.fail(fmt.Errorf("foreign buffer %T at vertex index %d", buffer, index))
		return
	}
	if index == metadata.UniformBufferIndex {
		e.bindings.uniform = b
		e.bindings.offset = offset
		return
	}
	e.vertex[index] = vertexBinding{buffer: b, offset: offset}
}

// SetFragmentBuffer only accepts the uniform buffer, which both stages
// share through one descriptor.
func (e *RenderCommandEncoder) SetFragmentBuffer(buffer metadata.Buffer, offset int, index int) {
	if index != metadata.UniformBufferIndex {
		e.fail(fmt.Errorf("fragment buffer index %d is not bindable", index))
		return
	}
	b, ok := buffer.(*VulkanBuffer)
	if !ok {
		e.fail(fmt.Errorf("foreign buffer %T at fragment index %d", buffer, index))
		return
	}
	e.bindings.uniform = b
	e.bindings.offset = offset
}

func (e *RenderCommandEncoder) SetVertexBytes(data []byte, index int) {
	if index != metadata.ModelMatrixBufferIndex {
		e.fail(fmt.Errorf("vertex bytes index %d is not bindable", index))
		return
	}
	e.model = [modelMatrixSize]byte{}
	copy(e.model[:], data)
}

func (e *RenderCommandEncoder) SetFragmentTexture(texture metadata.Texture, index int) {
	if index < 0 || index >= textureBindings {
		e.fail(fmt.Errorf("fragment texture index %d out of range", index))
		return
	}
	if texture == nil {
		e.bindings.textures[index] = nil
		return
	}
	t, ok := texture.(*Texture)
	if !ok {
		e.fail(fmt.Errorf("foreign texture %T at index %d", texture, index))
		return
	}
	e.bindings.textures[index] = t
}

func (e *RenderCommandEncoder) SetFragmentSamplerState(sampler metadata.SamplerState, index int) {
	if index < 0 || index >= textureBindings {
		e.fail(fmt.Errorf("fragment sampler index %d out of range", index))
		return
	}
	if sampler == nil {
		e.bindings.samplers[index] = nil
		return
	}
	s, ok := sampler.(*SamplerState)
	if !ok {
		e.fail(fmt.Errorf("foreign sampler %T at index %d", sampler, index))
		return
	}
	e.bindings.samplers[index] = s
}

func (e *RenderCommandEncoder) DrawPrimitives(primitive metadata.PrimitiveType, vertexStart int, vertexCount int) {
	if e.ended || e.err != nil {
		return
	}
	if e.pipeline == nil {
		e.fail(errors.New("draw without a pipeline"))
		return
	}
	device := e.cb.device
	vc := device.context
	cmd := e.cb.frame.CommandBuffer

	pipeline, err := e.pipeline.variant(pipelineKey{
		CullMode:   e.cullMode,
		DepthTest:  true,
		DepthWrite: e.depth.DepthWriteEnabled,
		DepthFunc:  e.depth.DepthCompareFunction,
		Primitive:  primitive,
	})
	if err != nil {
		e.fail(err)
		return
	}
	if pipeline != e.bound {
		pipeline.Bind(cmd)
		e.bound = pipeline
	}

	set, err := e.cb.frame.Descriptors.Write(vc, vc.Layout, e.bindings, device.defaultTexture, device.defaultSampler)
	if err != nil {
		e.fail(err)
		return
	}
	vk.CmdBindDescriptorSets(cmd.Handle, vk.PipelineBindPointGraphics, vc.Layout.Handle, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdPushConstants(cmd.Handle, vc.Layout.Handle, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, modelMatrixSize, unsafe.Pointer(&e.model[0]))

	for _, index := range e.pipeline.desc.VertexDescriptor.BufferIndices() {
		binding, ok := e.vertex[index]
		if !ok {
			e.fail(fmt.Errorf("no vertex buffer bound at index %d", index))
			return
		}
		vk.CmdBindVertexBuffers(cmd.Handle, uint32(index-metadata.FirstFreeVertexBufferIndex), 1,
			[]vk.Buffer{binding.buffer.Handle}, []vk.DeviceSize{vk.DeviceSize(binding.offset)})
	}
	vk.CmdDraw(cmd.Handle, uint32(vertexCount), 1, uint32(vertexStart), 0)
}

func (e *RenderCommandEncoder) EndEncoding() {
	if e.ended {
		return
	}
	e.ended = true
	e.cb.device.context.MainRenderpass.RenderpassEnd(e.cb.frame.CommandBuffer)
}
