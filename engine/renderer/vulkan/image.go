package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
}

// ImageCreate allocates a device local, optimally tiled 2D image with a view.
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (*VulkanImage, error) {
	img := &VulkanImage{Format: format, Width: width, Height: height}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if err := checkResult(vk.CreateImage(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle), "vkCreateImage"); err != nil {
		return nil, err
	}
	img.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex, err := context.FindMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if err := checkResult(vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	img.Memory = memory
	if err := checkResult(vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0), "vkBindImageMemory"); err != nil {
		img.ImageDestroy(context)
		return nil, err
	}

	view, err := createImageView(context, handle, format, aspect)
	if err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	img.View = view
	return img, nil
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := checkResult(vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view), "vkCreateImageView"); err != nil {
		return nil, err
	}
	return view, nil
}

func (img *VulkanImage) ImageDestroy(context *VulkanContext) {
	if img.View != nil {
		vk.DestroyImageView(context.Device.LogicalDevice, img.View, context.Allocator)
		img.View = nil
	}
	if img.Handle != nil {
		vk.DestroyImage(context.Device.LogicalDevice, img.Handle, context.Allocator)
		img.Handle = nil
	}
	if img.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, img.Memory, context.Allocator)
		img.Memory = nil
	}
}

// transitionLayout records a barrier for the color image between the layouts
// used by texture uploads.
func (img *VulkanImage) transitionLayout(cb *VulkanCommandBuffer, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlagBits
	switch to {
	case vk.ImageLayoutTransferDstOptimal:
		if from == vk.ImageLayoutShaderReadOnlyOptimal {
			barrier.SrcAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
			srcStage = vk.PipelineStageFragmentShaderBit
		} else {
			srcStage = vk.PipelineStageTopOfPipeBit
		}
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		dstStage = vk.PipelineStageTransferBit
	default:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageTransferBit
		dstStage = vk.PipelineStageFragmentShaderBit
	}

	vk.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(srcStage),
		vk.PipelineStageFlags(dstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (img *VulkanImage) copyFromBuffer(cb *VulkanCommandBuffer, buffer *VulkanBuffer) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: img.Width, Height: img.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb.Handle, buffer.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// Texture is a sampled color image. Uploads go through a persistent staging
// buffer and block until the copy finished.
type Texture struct {
	context *VulkanContext
	desc    metadata.TextureDescriptor
	image   *VulkanImage
	staging *VulkanBuffer
	layout  vk.ImageLayout
}

func newTexture(context *VulkanContext, desc metadata.TextureDescriptor) (*Texture, error) {
	format := pixelFormat(desc.PixelFormat)
	if desc.Width <= 0 || desc.Height <= 0 || format == vk.FormatUndefined || desc.PixelFormat == metadata.PixelFormatDepth32Float {
		return nil, fmt.Errorf("texture %q: invalid descriptor %dx%d", desc.Label, desc.Width, desc.Height)
	}
	img, err := ImageCreate(context, uint32(desc.Width), uint32(desc.Height), format,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	size := desc.Width * desc.Height * desc.PixelFormat.BytesPerPixel()
	staging, err := NewVulkanBuffer(context, size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), desc.Label+"-staging")
	if err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	return &Texture{
		context: context,
		desc:    desc,
		image:   img,
		staging: staging,
		layout:  vk.ImageLayoutUndefined,
	}, nil
}

func (t *Texture) Width() int {
	return t.desc.Width
}

func (t *Texture) Height() int {
	return t.desc.Height
}

func (t *Texture) PixelFormat() metadata.PixelFormat {
	return t.desc.PixelFormat
}

func (t *Texture) Label() string {
	return t.desc.Label
}

func (t *Texture) ReplaceRegion(pixels []byte) error {
	if len(pixels) != t.staging.Size {
		return fmt.Errorf("texture %q: got %d bytes, want %d", t.desc.Label, len(pixels), t.staging.Size)
	}
	ctx := t.context
	return ctx.Locks.SafeCall(MemoryManagement, func() error {
		copy(t.staging.Contents(), pixels)

		pool := ctx.Device.UploadCommandPool
		cb, err := AllocateAndBeginSingleUse(ctx, pool)
		if err != nil {
			return err
		}
		t.image.transitionLayout(cb, t.layout, vk.ImageLayoutTransferDstOptimal)
		t.image.copyFromBuffer(cb, t.staging)
		t.image.transitionLayout(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
		if err := cb.EndSingleUse(ctx, pool, ctx.Device.GraphicsQueue, uint32(ctx.Device.GraphicsQueueIndex)); err != nil {
			return fmt.Errorf("texture %q upload: %w", t.desc.Label, err)
		}
		t.layout = vk.ImageLayoutShaderReadOnlyOptimal
		return nil
	})
}

func (t *Texture) Destroy() {
	t.staging.Destroy(t.context)
	t.image.ImageDestroy(t.context)
}
