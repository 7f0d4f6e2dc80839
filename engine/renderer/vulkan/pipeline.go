package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// pipelineKey selects one compiled variant of a render pipeline. Cull mode,
// depth write and topology are baked into Vulkan pipelines but are encoder
// state in the renderer.
type pipelineKey struct {
	CullMode   metadata.FaceCullMode
	DepthTest  bool
	DepthWrite bool
	DepthFunc  metadata.CompareFunction
	Primitive  metadata.PrimitiveType
}

var defaultPipelineKey = pipelineKey{
	CullMode:   metadata.FaceCullModeNone,
	DepthTest:  true,
	DepthWrite: true,
	DepthFunc:  metadata.CompareFunctionLess,
	Primitive:  metadata.PrimitiveTypeTriangle,
}

type VulkanPipeline struct {
	Handle vk.Pipeline
}

// RenderPipelineState owns every variant created for one descriptor.
type RenderPipelineState struct {
	context  *VulkanContext
	desc     metadata.RenderPipelineDescriptor
	vertex   *Function
	fragment *Function

	mu       sync.Mutex
	variants map[pipelineKey]*VulkanPipeline
}

func newRenderPipelineState(context *VulkanContext, desc *metadata.RenderPipelineDescriptor) (*RenderPipelineState, error) {
	vertex, ok := desc.VertexFunction.(*Function)
	if !ok || vertex.Stage() != metadata.ShaderStageVertex {
		return nil, fmt.Errorf("%w: %q is not a vertex function", core.ErrPipelineCompile, functionName(desc.VertexFunction))
	}
	fragment, ok := desc.FragmentFunction.(*Function)
	if !ok || fragment.Stage() != metadata.ShaderStageFragment {
		return nil, fmt.Errorf("%w: %q is not a fragment function", core.ErrPipelineCompile, functionName(desc.FragmentFunction))
	}
	if err := checkVertexDescriptor(desc.VertexDescriptor); err != nil {
		return nil, err
	}
	state := &RenderPipelineState{
		context:  context,
		desc:     *desc,
		vertex:   vertex,
		fragment: fragment,
		variants: map[pipelineKey]*VulkanPipeline{},
	}
	// Building the default variant up front surfaces compile errors here.
	if _, err := state.variant(defaultPipelineKey); err != nil {
		return nil, err
	}
	return state, nil
}

func functionName(fn metadata.Function) string {
	if fn == nil {
		return ""
	}
	return fn.Name()
}

// checkVertexDescriptor rejects layouts Vulkan cannot express. Program inputs
// are not reflected from SPIR-V, so mismatches beyond this surface as
// validation errors.
func checkVertexDescriptor(vd *metadata.VertexDescriptor) error {
	if vd == nil || len(vd.Attributes) == 0 {
		return fmt.Errorf("%w: no vertex attributes", core.ErrVertexLayoutMismatch)
	}
	for i, a := range vd.Attributes {
		if vertexFormat(a.Format) == vk.FormatUndefined {
			return fmt.Errorf("%w: attribute %d has format %s", core.ErrVertexLayoutMismatch, i, a.Format)
		}
		if a.BufferIndex < metadata.FirstFreeVertexBufferIndex {
			return fmt.Errorf("%w: attribute %d uses reserved buffer index %d", core.ErrVertexLayoutMismatch, i, a.BufferIndex)
		}
		layout, ok := vd.Layouts[a.BufferIndex]
		if !ok {
			return fmt.Errorf("%w: no layout for buffer index %d", core.ErrVertexLayoutMismatch, a.BufferIndex)
		}
		if a.Offset+a.Format.Size() > layout.Stride {
			return fmt.Errorf("%w: attribute %d overruns stride %d", core.ErrVertexLayoutMismatch, i, layout.Stride)
		}
	}
	return nil
}

func (s *RenderPipelineState) Label() string {
	return s.desc.Label
}

func (s *RenderPipelineState) variant(key pipelineKey) (*VulkanPipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.variants[key]; ok {
		return p, nil
	}
	var p *VulkanPipeline
	err := s.context.Locks.SafeCall(PipelineManagement, func() error {
		var err error
		p, err = NewGraphicsPipeline(s.context, s, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", core.ErrPipelineCompile, s.desc.Label, err)
	}
	s.variants[key] = p
	return p, nil
}

func (s *RenderPipelineState) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.variants {
		p.Destroy(s.context)
		delete(s.variants, key)
	}
}

func NewGraphicsPipeline(context *VulkanContext, state *RenderPipelineState, key pipelineKey) (*VulkanPipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: state.vertex.module,
			PName:  VulkanSafeString(state.vertex.entryPoint),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: state.fragment.module,
			PName:  VulkanSafeString(state.fragment.entryPoint),
		},
	}

	// Vulkan binding n is argument table index n+FirstFreeVertexBufferIndex.
	vd := state.desc.VertexDescriptor
	var bindings []vk.VertexInputBindingDescription
	for _, index := range vd.BufferIndices() {
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   uint32(index - metadata.FirstFreeVertexBufferIndex),
			Stride:    uint32(vd.Layouts[index].Stride),
			InputRate: vk.VertexInputRateVertex,
		})
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(vd.Attributes))
	for i, a := range vd.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  uint32(a.BufferIndex - metadata.FirstFreeVertexBufferIndex),
			Format:   vertexFormat(a.Format),
			Offset:   uint32(a.Offset),
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology(key.Primitive),
		PrimitiveRestartEnable: vk.False,
	}

	// Viewport and scissor are dynamic, set when the pass begins.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                cullMode(key.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		DepthCompareOp:    compareOp(key.DepthFunc),
		StencilTestEnable: vk.False,
	}
	if key.DepthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if key.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              context.Layout.Handle,
		RenderPass:          context.MainRenderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	result := vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineInfo}, context.Allocator, pipelines)
	if err := checkResult(result, "vkCreateGraphicsPipelines"); err != nil {
		return nil, err
	}

	core.LogDebug("Graphics pipeline %q created (cull=%d depthWrite=%t).", state.desc.Label, key.CullMode, key.DepthWrite)
	return &VulkanPipeline{Handle: pipelines[0]}, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	if pipeline.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = vk.NullPipeline
	}
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, vk.PipelineBindPointGraphics, pipeline.Handle)
}
