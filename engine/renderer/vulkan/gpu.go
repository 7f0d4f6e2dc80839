package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

type SamplerState struct {
	Handle vk.Sampler
	desc   metadata.SamplerDescriptor
}

func (s *SamplerState) Descriptor() metadata.SamplerDescriptor {
	return s.desc
}

func newSamplerState(context *VulkanContext, desc metadata.SamplerDescriptor) (*SamplerState, error) {
	filter := func(f metadata.SamplerFilter) vk.Filter {
		if f == metadata.SamplerFilterLinear {
			return vk.FilterLinear
		}
		return vk.FilterNearest
	}
	address := func(a metadata.SamplerAddressMode) vk.SamplerAddressMode {
		if a == metadata.SamplerAddressModeRepeat {
			return vk.SamplerAddressModeRepeat
		}
		return vk.SamplerAddressModeClampToEdge
	}
	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter(desc.MagFilter),
		MinFilter:               filter(desc.MinFilter),
		AddressModeU:            address(desc.AddressModeU),
		AddressModeV:            address(desc.AddressModeV),
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	var handle vk.Sampler
	if err := checkResult(vk.CreateSampler(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle), "vkCreateSampler"); err != nil {
		return nil, err
	}
	return &SamplerState{Handle: handle, desc: desc}, nil
}

func (s *SamplerState) destroy(context *VulkanContext) {
	if s.Handle != nil {
		vk.DestroySampler(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nil
	}
}

// DepthStencilState only carries its descriptor. Vulkan bakes depth state
// into the pipeline, so the encoder folds it into the variant key.
type DepthStencilState struct {
	desc metadata.DepthStencilDescriptor
}

func (s *DepthStencilState) Descriptor() metadata.DepthStencilDescriptor {
	return s.desc
}

// Device implements metadata.Device on a Vulkan logical device. It owns
// every object it creates and releases them in Destroy.
type Device struct {
	context *VulkanContext
	library *Library
	surface *Surface

	defaultTexture *Texture
	defaultSampler *SamplerState

	mu        sync.Mutex
	buffers   []*VulkanBuffer
	textures  []*Texture
	samplers  []*SamplerState
	pipelines []*RenderPipelineState
}

func newDevice(context *VulkanContext, shaders ShaderSource) (*Device, error) {
	d := &Device{
		context: context,
		library: newLibrary(context, shaders),
	}
	tex, err := d.newTexture(metadata.TextureDescriptor{
		Width:       1,
		Height:      1,
		PixelFormat: metadata.PixelFormatRGBA8Unorm,
		Label:       "default-white",
	}, []byte{0xff, 0xff, 0xff, 0xff})
	if err != nil {
		return nil, fmt.Errorf("failed to create the default texture: %w", err)
	}
	d.defaultTexture = tex
	sampler, err := d.newSampler(metadata.SamplerDescriptor{
		MinFilter: metadata.SamplerFilterLinear,
		MagFilter: metadata.SamplerFilterLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create the default sampler: %w", err)
	}
	d.defaultSampler = sampler
	return d, nil
}

func (d *Device) Name() string {
	return d.context.Device.Name
}

func (d *Device) NewBuffer(length int, label string) (metadata.Buffer, error) {
	usage := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageUniformBufferBit | vk.BufferUsageTransferSrcBit)
	b, err := NewVulkanBuffer(d.context, length, usage, label)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.buffers = append(d.buffers, b)
	d.mu.Unlock()
	return b, nil
}

func (d *Device) NewBufferWithBytes(data []byte, label string) (metadata.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("buffer %q: no data", label)
	}
	b, err := d.NewBuffer(len(data), label)
	if err != nil {
		return nil, err
	}
	copy(b.Contents(), data)
	return b, nil
}

func (d *Device) NewTexture(desc metadata.TextureDescriptor, pixels []byte) (metadata.Texture, error) {
	return d.newTexture(desc, pixels)
}

// newTexture always uploads once so the image is in a sampleable layout,
// zero filled when pixels is nil.
func (d *Device) newTexture(desc metadata.TextureDescriptor, pixels []byte) (*Texture, error) {
	t, err := newTexture(d.context, desc)
	if err != nil {
		return nil, err
	}
	if pixels == nil {
		pixels = make([]byte, desc.Width*desc.Height*desc.PixelFormat.BytesPerPixel())
	}
	if err := t.ReplaceRegion(pixels); err != nil {
		t.Destroy()
		return nil, err
	}
	d.mu.Lock()
	d.textures = append(d.textures, t)
	d.mu.Unlock()
	return t, nil
}

func (d *Device) NewSamplerState(desc metadata.SamplerDescriptor) (metadata.SamplerState, error) {
	return d.newSampler(desc)
}

func (d *Device) newSampler(desc metadata.SamplerDescriptor) (*SamplerState, error) {
	s, err := newSamplerState(d.context, desc)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.samplers = append(d.samplers, s)
	d.mu.Unlock()
	return s, nil
}

func (d *Device) NewDepthStencilState(desc metadata.DepthStencilDescriptor) (metadata.DepthStencilState, error) {
	return &DepthStencilState{desc: desc}, nil
}

func (d *Device) NewRenderPipelineState(desc *metadata.RenderPipelineDescriptor) (metadata.RenderPipelineState, error) {
	state, err := newRenderPipelineState(d.context, desc)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.pipelines = append(d.pipelines, state)
	d.mu.Unlock()
	return state, nil
}

// NewComputePipelineState is not implemented on Vulkan yet. The swapchain
// images are not created with storage usage, which the kernels write to.
func (d *Device) NewComputePipelineState(kernel metadata.Function) (metadata.ComputePipelineState, error) {
	return nil, core.ErrComputeUnsupported
}

func (d *Device) NewCommandQueue() (metadata.CommandQueue, error) {
	return &CommandQueue{device: d}, nil
}

func (d *Device) DefaultLibrary() (metadata.Library, error) {
	return d.library, nil
}

func (d *Device) WaitIdle() {
	d.context.waitFrames()
	if d.context.Device != nil && d.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(d.context.Device.LogicalDevice)
	}
}

func (d *Device) Destroy() {
	d.WaitIdle()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pipelines {
		p.Destroy()
	}
	for _, s := range d.samplers {
		s.destroy(d.context)
	}
	for _, t := range d.textures {
		t.Destroy()
	}
	for _, b := range d.buffers {
		b.Destroy(d.context)
	}
	d.pipelines, d.samplers, d.textures, d.buffers = nil, nil, nil, nil
	d.library.Destroy()
}
