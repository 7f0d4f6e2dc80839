package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// VulkanBuffer is a host visible, coherent buffer that stays mapped for its
// whole lifetime. It implements metadata.Buffer.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   int

	label  string
	mapped []byte
}

func NewVulkanBuffer(context *VulkanContext, size int, usage vk.BufferUsageFlags, label string) (*VulkanBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer %q: invalid length %d", label, size)
	}
	b := &VulkanBuffer{Size: size, label: label}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := checkResult(vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle), "vkCreateBuffer"); err != nil {
		return nil, err
	}
	b.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex, err := context.FindMemoryIndex(requirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		b.Destroy(context)
		return nil, fmt.Errorf("buffer %q: %w", label, err)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if err := checkResult(vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		b.Destroy(context)
		return nil, err
	}
	b.Memory = memory

	if err := checkResult(vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0), "vkBindBufferMemory"); err != nil {
		b.Destroy(context)
		return nil, err
	}

	var ptr unsafe.Pointer
	if err := checkResult(vk.MapMemory(context.Device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &ptr), "vkMapMemory"); err != nil {
		b.Destroy(context)
		return nil, err
	}
	b.mapped = unsafe.Slice((*byte)(ptr), size)
	return b, nil
}

func (b *VulkanBuffer) Contents() []byte {
	return b.mapped
}

func (b *VulkanBuffer) Length() int {
	return b.Size
}

func (b *VulkanBuffer) Label() string {
	return b.label
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.mapped != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
		b.mapped = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nil
	}
}
