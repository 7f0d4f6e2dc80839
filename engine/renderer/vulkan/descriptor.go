package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

const (
	uniformBinding = 0
	// Fragment texture index i is bound at textureBindingBase+i.
	textureBindingBase = 1
	textureBindings    = 2

	// The model matrix travels as a vertex stage push constant.
	modelMatrixSize = 64

	descriptorSetsPerFrame = 256
)

// VulkanPipelineLayout is shared by every render pipeline, mirroring the
// fixed argument table of the programs.
type VulkanPipelineLayout struct {
	SetLayout vk.DescriptorSetLayout
	Handle    vk.PipelineLayout
}

func NewPipelineLayout(context *VulkanContext) (*VulkanPipelineLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         uniformBinding,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	}}
	for i := 0; i < textureBindings; i++ {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         uint32(textureBindingBase + i),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}

	layout := &VulkanPipelineLayout{}
	var setLayout vk.DescriptorSetLayout
	if err := checkResult(vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, context.Allocator, &setLayout), "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	layout.SetLayout = setLayout

	pushConstants := []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       modelMatrixSize,
	}}
	var handle vk.PipelineLayout
	if err := checkResult(vk.CreatePipelineLayout(context.Device.LogicalDevice, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: uint32(len(pushConstants)),
		PPushConstantRanges:    pushConstants,
	}, context.Allocator, &handle), "vkCreatePipelineLayout"); err != nil {
		layout.Destroy(context)
		return nil, err
	}
	layout.Handle = handle
	return layout, nil
}

func (l *VulkanPipelineLayout) Destroy(context *VulkanContext) {
	if l.Handle != nil {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, l.Handle, context.Allocator)
		l.Handle = nil
	}
	if l.SetLayout != nil {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, l.SetLayout, context.Allocator)
		l.SetLayout = nil
	}
}

// VulkanDescriptorPool hands out one descriptor set per draw. It belongs to
// a frame in flight and is reset when the frame is reused.
type VulkanDescriptorPool struct {
	Handle  vk.DescriptorPool
	MaxSets int
	used    int
}

func NewDescriptorPool(context *VulkanContext, maxSets int) (*VulkanDescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: uint32(maxSets)},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: uint32(maxSets * textureBindings)},
	}
	var handle vk.DescriptorPool
	if err := checkResult(vk.CreateDescriptorPool(context.Device.LogicalDevice, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(maxSets),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, context.Allocator, &handle), "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	return &VulkanDescriptorPool{Handle: handle, MaxSets: maxSets}, nil
}

func (p *VulkanDescriptorPool) Reset(context *VulkanContext) error {
	p.used = 0
	return checkResult(vk.ResetDescriptorPool(context.Device.LogicalDevice, p.Handle, 0), "vkResetDescriptorPool")
}

func (p *VulkanDescriptorPool) Destroy(context *VulkanContext) {
	if p.Handle != nil {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, p.Handle, context.Allocator)
		p.Handle = nil
	}
}

// drawBindings is what a single draw reads through its descriptor set.
type drawBindings struct {
	uniform  *VulkanBuffer
	offset   int
	textures [textureBindings]*Texture
	samplers [textureBindings]*SamplerState
}

// Write allocates a set and fills every binding. Missing textures and
// samplers fall back to the device defaults.
func (p *VulkanDescriptorPool) Write(context *VulkanContext, layout *VulkanPipelineLayout, b *drawBindings, fallback *Texture, fallbackSampler *SamplerState) (vk.DescriptorSet, error) {
	if p.used >= p.MaxSets {
		return nil, fmt.Errorf("descriptor pool exhausted after %d draws", p.MaxSets)
	}
	if b.uniform == nil {
		return nil, fmt.Errorf("no uniform buffer bound at index %d", metadata.UniformBufferIndex)
	}
	var set vk.DescriptorSet
	if err := checkResult(vk.AllocateDescriptorSets(context.Device.LogicalDevice, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.SetLayout},
	}, &set), "vkAllocateDescriptorSets"); err != nil {
		return nil, err
	}
	p.used++

	writes := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      uniformBinding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: b.uniform.Handle,
			Offset: vk.DeviceSize(b.offset),
			Range:  vk.DeviceSize(b.uniform.Size - b.offset),
		}},
	}}
	for i := 0; i < textureBindings; i++ {
		tex := b.textures[i]
		if tex == nil {
			tex = fallback
		}
		sampler := b.samplers[i]
		if sampler == nil {
			sampler = fallbackSampler
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(textureBindingBase + i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				ImageView:   tex.image.View,
				Sampler:     sampler.Handle,
			}},
		})
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	return set, nil
}
