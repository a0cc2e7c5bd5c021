package vulkan

import (
	vk "github.com/goki/vulkan"
)

/**
 * @brief A colour image plus the depth image the framebuffer owns.
 */
type VulkanFramebuffer struct {
	Handle     vk.Framebuffer
	Renderpass *VulkanRenderpass
	Width      uint32
	Height     uint32
	Color      *VulkanImage
	Depth      *VulkanImage
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, color *VulkanImage) (*VulkanFramebuffer, error) {
	depth, err := NewVulkanImage(context, color.Width, color.Height, renderpass.DepthFormat,
		vk.ImageUsageDepthStencilAttachmentBit, vk.ImageAspectDepthBit)
	if err != nil {
		return nil, err
	}
	out := &VulkanFramebuffer{
		Renderpass: renderpass,
		Width:      color.Width,
		Height:     color.Height,
		Color:      color,
		Depth:      depth,
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: 2,
		PAttachments:    []vk.ImageView{color.View, depth.View},
		Width:           color.Width,
		Height:          color.Height,
		Layers:          1,
	}
	var handle vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		depth.Destroy(context)
		return nil, resultError("vkCreateFramebuffer", res)
	}
	out.Handle = handle
	return out, nil
}

// Destroy releases the framebuffer and its depth image. The colour image belongs to the caller.
func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
		vfb.Handle = vk.NullFramebuffer
	}
	if vfb.Depth != nil {
		vfb.Depth.Destroy(context)
		vfb.Depth = nil
	}
	vfb.Color = nil
	vfb.Renderpass = nil
}

// prepare records the transitions that put both attachments in the layouts the pass expects.
func (vfb *VulkanFramebuffer) prepare(cmd vk.CommandBuffer) {
	vfb.Color.Transition(cmd, vk.ImageLayoutColorAttachmentOptimal)
	vfb.Depth.Transition(cmd, vk.ImageLayoutDepthStencilAttachmentOptimal)
}
