package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const (
	// World matrix followed by the diffuse colour.
	pushConstantSize uint32 = 64 + 16
	instanceStride   uint32 = 64
	// Per-vertex attributes use their VertexAttribute value as location; the
	// instance matrix rows follow.
	instanceLocation = uint32(metadata.VertexAttributeCount)
)

/**
 * @brief Holds a Vulkan pipeline. The layout is shared by every pipeline of a cache.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
}

/** @brief Everything that selects a distinct pipeline. */
type pipelineKey struct {
	renderPass vk.RenderPass
	layout     *metadata.VertexLayout
	topology   metadata.Topology
	cull       metadata.FaceCullMode
	blend      metadata.BlendMode
	depth      metadata.DepthMode
	instanced  bool
}

/**
 * @brief Builds mesh pipelines on first use and keeps them until Destroy.
 * Shader stages are shared; a cache without stages cannot draw.
 */
type VulkanPipelineCache struct {
	Layout    vk.PipelineLayout
	stages    []*VulkanShaderStage
	pipelines map[pipelineKey]*VulkanPipeline
}

func NewPipelineCache(context *VulkanContext, setLayout vk.DescriptorSetLayout, vertexCode, fragmentCode []byte) (*VulkanPipelineCache, error) {
	out := &VulkanPipelineCache{pipelines: make(map[pipelineKey]*VulkanPipeline)}

	createInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       pushConstantSize,
		}},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout); res != vk.Success {
		return nil, resultError("vkCreatePipelineLayout", res)
	}
	out.Layout = layout

	if len(vertexCode) == 0 || len(fragmentCode) == 0 {
		core.LogWarn("no mesh shaders configured; the vulkan backend will not draw")
		return out, nil
	}
	vertex, err := NewShaderStage(context, vertexCode, vk.ShaderStageVertexBit)
	if err != nil {
		out.Destroy(context)
		return nil, errors.Wrap(err, "vertex shader")
	}
	out.stages = append(out.stages, vertex)
	fragment, err := NewShaderStage(context, fragmentCode, vk.ShaderStageFragmentBit)
	if err != nil {
		out.Destroy(context)
		return nil, errors.Wrap(err, "fragment shader")
	}
	out.stages = append(out.stages, fragment)
	return out, nil
}

func (pc *VulkanPipelineCache) CanDraw() bool {
	return len(pc.stages) == 2
}

func (pc *VulkanPipelineCache) Len() int {
	return len(pc.pipelines)
}

// Get returns the pipeline for key, creating it on a miss.
func (pc *VulkanPipelineCache) Get(context *VulkanContext, key pipelineKey) (*VulkanPipeline, error) {
	if p, ok := pc.pipelines[key]; ok {
		return p, nil
	}
	if !pc.CanDraw() {
		return nil, errors.Mark(errors.New("no mesh shaders configured"), core.ErrUnsupported)
	}
	p, err := pc.create(context, key)
	if err != nil {
		return nil, err
	}
	pc.pipelines[key] = p
	core.LogDebug("graphics pipeline created (%d cached)", len(pc.pipelines))
	return p, nil
}

func (pc *VulkanPipelineCache) create(context *VulkanContext, key pipelineKey) (*VulkanPipeline, error) {
	// Viewport and scissor are dynamic; only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		FrontFace:   vk.FrontFaceCounterClockwise,
	}
	switch key.cull {
	case metadata.FaceCullModeNone:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpLessOrEqual,
	}
	switch key.depth {
	case metadata.DepthModeTestWrite:
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
	case metadata.DepthModeTest:
		depthStencil.DepthTestEnable = vk.True
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	switch key.blend {
	case metadata.BlendModeAlpha:
		colorBlendAttachmentState.BlendEnable = vk.True
		colorBlendAttachmentState.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.ColorBlendOp = vk.BlendOpAdd
		colorBlendAttachmentState.SrcAlphaBlendFactor = vk.BlendFactorOne
		colorBlendAttachmentState.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.AlphaBlendOp = vk.BlendOpAdd
	case metadata.BlendModeAdditive:
		colorBlendAttachmentState.BlendEnable = vk.True
		colorBlendAttachmentState.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstColorBlendFactor = vk.BlendFactorOne
		colorBlendAttachmentState.ColorBlendOp = vk.BlendOpAdd
		colorBlendAttachmentState.SrcAlphaBlendFactor = vk.BlendFactorOne
		colorBlendAttachmentState.DstAlphaBlendFactor = vk.BlendFactorOne
		colorBlendAttachmentState.AlphaBlendOp = vk.BlendOpAdd
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindings, attributes, err := vertexInput(key.layout, key.instanced)
	if err != nil {
		return nil, err
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
		Topology:               primitiveTopology(key.topology),
		PrimitiveRestartEnable: vk.False,
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(pc.stages))
	for i, s := range pc.stages {
		stages[i] = s.ShaderStageCreateInfo
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              pc.Layout,
		RenderPass:          key.renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	result := vk.CreateGraphicsPipelines(
		context.Device.LogicalDevice,
		vk.NullPipelineCache,
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
		context.Allocator,
		pipelines)
	if !VulkanResultIsSuccess(result) {
		return nil, resultError("vkCreateGraphicsPipelines", result)
	}
	return &VulkanPipeline{Handle: pipelines[0]}, nil
}

func vertexInput(layout *metadata.VertexLayout, instanced bool) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    layout.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}
	attributes := make([]vk.VertexInputAttributeDescription, 0, len(layout.Elements)+4)
	for _, e := range layout.Elements {
		format, ok := attributeFormat(e.Type)
		if !ok {
			return nil, nil, core.InvalidArgumentf("vertex attribute %s has no Vulkan format", e.Attribute)
		}
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: uint32(e.Attribute),
			Binding:  0,
			Format:   format,
			Offset:   e.Offset,
		})
	}
	if instanced {
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   1,
			Stride:    instanceStride,
			InputRate: vk.VertexInputRateInstance,
		})
		for row := uint32(0); row < 4; row++ {
			attributes = append(attributes, vk.VertexInputAttributeDescription{
				Location: instanceLocation + row,
				Binding:  1,
				Format:   vk.FormatR32g32b32a32Sfloat,
				Offset:   row * 16,
			})
		}
	}
	return bindings, attributes, nil
}

func primitiveTopology(t metadata.Topology) vk.PrimitiveTopology {
	switch t {
	case metadata.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.TopologyLines:
		return vk.PrimitiveTopologyLineList
	case metadata.TopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	}
	return vk.PrimitiveTopologyTriangleList
}

func (pipeline *VulkanPipeline) Bind(cb *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(cb.Handle, bindPoint, pipeline.Handle)
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	if pipeline.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = vk.NullPipeline
	}
}

// Destroy releases every pipeline, the shared layout and the shader stages.
func (pc *VulkanPipelineCache) Destroy(context *VulkanContext) {
	for key, p := range pc.pipelines {
		p.Destroy(context)
		delete(pc.pipelines, key)
	}
	if pc.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, pc.Layout, context.Allocator)
		pc.Layout = vk.NullPipelineLayout
	}
	for _, s := range pc.stages {
		s.Destroy(context)
	}
	pc.stages = nil
}
