package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/systems"
)

// VulkanFrame is the per frame-in-flight state. done is closed once the
// completion job of the last submission using this frame has run.
type VulkanFrame struct {
	CommandBuffer  *VulkanCommandBuffer
	ImageAvailable vk.Semaphore
	QueueComplete  vk.Semaphore
	Fence          *VulkanFence
	Descriptors    *VulkanDescriptorPool

	done chan struct{}
}

// wait blocks until the previous use of the frame completed.
func (f *VulkanFrame) wait() {
	if f.done != nil {
		<-f.done
	}
}

type VulkanContext struct {
	// The framebuffer's current size.
	FramebufferWidth  uint32
	FramebufferHeight uint32
	// Bumped on every resize. A mismatch with the last generation means the
	// swapchain must be recreated before the next frame.
	FramebufferSizeGeneration     uint64
	FramebufferSizeLastGeneration uint64

	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass
	Layout         *VulkanPipelineLayout

	Frames []*VulkanFrame
	// Done channel of the frame that last rendered into each swapchain image.
	ImagesInFlight []chan struct{}

	ImageIndex   uint32
	CurrentFrame uint32
	// imageAcquired is set between a successful acquire and the submit.
	imageAcquired bool

	RecreatingSwapchain bool

	Locks *VulkanLockPool
	Jobs  *systems.JobSystem
}

func (vc *VulkanContext) frame() *VulkanFrame {
	return vc.Frames[vc.CurrentFrame]
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type matches filter %b with flags %b", typeFilter, propertyFlags)
}

func (vc *VulkanContext) createFrames(count int) error {
	vc.Frames = make([]*VulkanFrame, count)
	for i := range vc.Frames {
		f := &VulkanFrame{}
		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if err := checkResult(vk.CreateSemaphore(vc.Device.LogicalDevice, &semaphoreCreateInfo, vc.Allocator, &f.ImageAvailable), "vkCreateSemaphore"); err != nil {
			return err
		}
		if err := checkResult(vk.CreateSemaphore(vc.Device.LogicalDevice, &semaphoreCreateInfo, vc.Allocator, &f.QueueComplete), "vkCreateSemaphore"); err != nil {
			return err
		}
		fence, err := NewFence(vc, false)
		if err != nil {
			return err
		}
		f.Fence = fence
		cb, err := NewVulkanCommandBuffer(vc, vc.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		f.CommandBuffer = cb
		pool, err := NewDescriptorPool(vc, descriptorSetsPerFrame)
		if err != nil {
			return err
		}
		f.Descriptors = pool
		vc.Frames[i] = f
	}
	return nil
}

func (vc *VulkanContext) destroyFrames() {
	for _, f := range vc.Frames {
		if f == nil {
			continue
		}
		f.wait()
		if f.Descriptors != nil {
			f.Descriptors.Destroy(vc)
		}
		if f.CommandBuffer != nil {
			f.CommandBuffer.Free(vc, vc.Device.GraphicsCommandPool)
		}
		if f.Fence != nil {
			f.Fence.FenceDestroy(vc)
		}
		if f.ImageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(vc.Device.LogicalDevice, f.ImageAvailable, vc.Allocator)
		}
		if f.QueueComplete != vk.NullSemaphore {
			vk.DestroySemaphore(vc.Device.LogicalDevice, f.QueueComplete, vc.Allocator)
		}
	}
	vc.Frames = nil
}

// waitFrames blocks until every submitted frame completed.
func (vc *VulkanContext) waitFrames() {
	for _, f := range vc.Frames {
		f.wait()
	}
}
