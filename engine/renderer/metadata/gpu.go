package metadata

// Device creates every GPU object the renderer uses. Implementations are the
// Vulkan backend and the headless recording backend.
type Device interface {
	Name() string
	NewBuffer(length int, label string) (Buffer, error)
	NewBufferWithBytes(data []byte, label string) (Buffer, error)
	NewTexture(desc TextureDescriptor, pixels []byte) (Texture, error)
	NewSamplerState(desc SamplerDescriptor) (SamplerState, error)
	NewDepthStencilState(desc DepthStencilDescriptor) (DepthStencilState, error)
	NewRenderPipelineState(desc *RenderPipelineDescriptor) (RenderPipelineState, error)
	NewComputePipelineState(kernel Function) (ComputePipelineState, error)
	NewCommandQueue() (CommandQueue, error)
	DefaultLibrary() (Library, error)
	WaitIdle()
	Destroy()
}

// Library resolves named program entry points.
type Library interface {
	// Function returns core.ErrFunctionNotFound for unknown names.
	Function(name string) (Function, error)
	FunctionNames() []string
}

type Function interface {
	Name() string
	Stage() ShaderStage
}

// Buffer is host visible memory. Contents is valid for the lifetime of the buffer.
type Buffer interface {
	Contents() []byte
	Length() int
	Label() string
}

type Texture interface {
	Width() int
	Height() int
	PixelFormat() PixelFormat
	// ReplaceRegion uploads tightly packed pixels covering the whole texture.
	ReplaceRegion(pixels []byte) error
}

type SamplerState interface {
	Descriptor() SamplerDescriptor
}

type DepthStencilState interface {
	Descriptor() DepthStencilDescriptor
}

type RenderPipelineState interface {
	Label() string
}

type ComputePipelineState interface {
	Label() string
	MaxTotalThreadsPerThreadgroup() int
}

type CommandQueue interface {
	CommandBuffer() (CommandBuffer, error)
}

// CommandBuffer collects the encoded work of one frame. Completed handlers
// run exactly once after Commit, on an arbitrary goroutine, also when the
// submission failed (Status is then CommandBufferStatusError).
type CommandBuffer interface {
	RenderCommandEncoder(pass *RenderPassDescriptor) (RenderCommandEncoder, error)
	ComputeCommandEncoder() (ComputeCommandEncoder, error)
	AddCompletedHandler(handler func(CommandBuffer))
	Present(drawable Drawable)
	Commit() error
	Status() CommandBufferStatus
	Error() error
}

type RenderCommandEncoder interface {
	SetRenderPipelineState(state RenderPipelineState)
	SetDepthStencilState(state DepthStencilState)
	SetCullMode(mode FaceCullMode)
	SetVertexBuffer(buffer Buffer, offset int, index int)
	SetFragmentBuffer(buffer Buffer, offset int, index int)
	// SetVertexBytes copies data, which must be small (a model matrix).
	SetVertexBytes(data []byte, index int)
	SetFragmentTexture(texture Texture, index int)
	SetFragmentSamplerState(sampler SamplerState, index int)
	DrawPrimitives(primitive PrimitiveType, vertexStart int, vertexCount int)
	EndEncoding()
}

type ComputeCommandEncoder interface {
	SetComputePipelineState(state ComputePipelineState)
	SetTexture(texture Texture, index int)
	SetBytes(data []byte, index int)
	DispatchThreadgroups(threadgroups Size, threadsPerThreadgroup Size)
	EndEncoding()
}

// Drawable is a presentable image of the surface.
type Drawable interface {
	Texture() Texture
}

// Surface is what the renderer draws into each refresh tick. Both accessors
// return nil when the surface cannot currently be drawn to, in which case
// the frame is skipped.
type Surface interface {
	CurrentRenderPassDescriptor() *RenderPassDescriptor
	CurrentDrawable() Drawable
	DrawableSize() (width, height int)
	ColorPixelFormat() PixelFormat
	DepthStencilPixelFormat() PixelFormat
}
