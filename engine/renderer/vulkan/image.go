package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
	Aspect vk.ImageAspectFlagBits
	Layout vk.ImageLayout
}

func NewVulkanImage(
	context *VulkanContext,
	width, height uint32,
	format vk.Format,
	usage vk.ImageUsageFlagBits,
	aspect vk.ImageAspectFlagBits,
) (*VulkanImage, error) {
	device := context.Device.LogicalDevice
	out := &VulkanImage{
		Width:  width,
		Height: height,
		Format: format,
		Aspect: aspect,
		Layout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	res := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, context.Allocator, &image)
	if res != vk.Success {
		return nil, resultError("vkCreateImage", res)
	}
	out.Handle = image

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image, &memReqs)
	memReqs.Deref()

	memoryType := context.FindMemoryIndex(memReqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if memoryType < 0 {
		out.Destroy(context)
		return nil, errors.Mark(errors.New("no device local memory type for image"), core.ErrUnsupported)
	}
	var memory vk.DeviceMemory
	res = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryType),
	}, context.Allocator, &memory)
	if res != vk.Success {
		out.Destroy(context)
		return nil, resultError("vkAllocateMemory", res)
	}
	out.Memory = memory
	if res := vk.BindImageMemory(device, image, memory, 0); res != vk.Success {
		out.Destroy(context)
		return nil, resultError("vkBindImageMemory", res)
	}

	var view vk.ImageView
	res = vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, context.Allocator, &view)
	if res != vk.Success {
		out.Destroy(context)
		return nil, resultError("vkCreateImageView", res)
	}
	out.View = view
	return out, nil
}

func (img *VulkanImage) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if img.View != vk.NullImageView {
		vk.DestroyImageView(device, img.View, context.Allocator)
		img.View = vk.NullImageView
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(device, img.Handle, context.Allocator)
		img.Handle = vk.NullImage
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, img.Memory, context.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
}

func layoutAccess(layout vk.ImageLayout) (vk.AccessFlagBits, vk.PipelineStageFlagBits) {
	switch layout {
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessTransferWriteBit, vk.PipelineStageTransferBit
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessTransferReadBit, vk.PipelineStageTransferBit
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessShaderReadBit, vk.PipelineStageFragmentShaderBit
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit, vk.PipelineStageColorAttachmentOutputBit
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit,
			vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
	}
	return 0, vk.PipelineStageTopOfPipeBit
}

// Transition records a layout change. No-op when the image is already in layout.
func (img *VulkanImage) Transition(cmd vk.CommandBuffer, layout vk.ImageLayout) {
	if img.Layout == layout {
		return
	}
	srcAccess, srcStage := layoutAccess(img.Layout)
	dstAccess, dstStage := layoutAccess(layout)
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), vk.DependencyFlags(0),
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(srcAccess),
			DstAccessMask:       vk.AccessFlags(dstAccess),
			OldLayout:           img.Layout,
			NewLayout:           layout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(img.Aspect),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
	img.Layout = layout
}

// copyRegion describes a tightly packed region of the image for buffer copies.
func (img *VulkanImage) copyRegion(region metadata.TextureRegion) vk.BufferImageCopy {
	if region.IsZero() {
		region = metadata.TextureRegion{Width: img.Width, Height: img.Height}
	}
	return vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(img.Aspect),
			LayerCount: 1,
		},
		ImageOffset: vk.Offset3D{X: int32(region.X), Y: int32(region.Y)},
		ImageExtent: vk.Extent3D{Width: region.Width, Height: region.Height, Depth: 1},
	}
}

// restingLayout is where a texture waits between commands.
func restingLayout(flags metadata.ResourceFlags, format metadata.TextureFormat) vk.ImageLayout {
	if format == metadata.TextureFormatDepth32F {
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	}
	if flags.Has(metadata.ResourceFlagRenderTarget) {
		return vk.ImageLayoutColorAttachmentOptimal
	}
	return vk.ImageLayoutShaderReadOnlyOptimal
}

/**
 * @brief A texture: its image, the descriptor set binding it for sampling
 * and, for render targets, the framebuffer drawing into it.
 */
type vulkanTexture struct {
	desc        metadata.TextureDescriptor
	image       *VulkanImage
	descriptor  vk.DescriptorSet
	framebuffer *VulkanFramebuffer
}

func (r *VulkanRenderer) SupportsTextureFormat(format metadata.TextureFormat) bool {
	vf, ok := textureFormat(format)
	if !ok || !r.initialized {
		return ok
	}
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(r.context.Device.PhysicalDevice, vf, &properties)
	properties.Deref()
	want := vk.FormatFeatureSampledImageBit
	if format == metadata.TextureFormatDepth32F {
		want = vk.FormatFeatureDepthStencilAttachmentBit
	}
	return properties.OptimalTilingFeatures&vk.FormatFeatureFlags(want) != 0
}

func textureUsage(desc metadata.TextureDescriptor) (vk.ImageUsageFlagBits, vk.ImageAspectFlagBits) {
	usage := vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit
	if desc.Format == metadata.TextureFormatDepth32F {
		return usage | vk.ImageUsageDepthStencilAttachmentBit, vk.ImageAspectDepthBit
	}
	usage |= vk.ImageUsageSampledBit
	if desc.Flags.Has(metadata.ResourceFlagRenderTarget) {
		usage |= vk.ImageUsageColorAttachmentBit
	}
	return usage, vk.ImageAspectColorBit
}

func (r *VulkanRenderer) CreateTexture(desc metadata.TextureDescriptor, pixels []byte) metadata.ResourceHandle {
	if !r.initialized {
		core.LogError("cannot create texture %q: %s", desc.Name, core.ErrBackendNotInitialized)
		return metadata.InvalidHandle
	}
	vf, ok := textureFormat(desc.Format)
	if !ok || !r.SupportsTextureFormat(desc.Format) {
		core.LogError("texture %q: unsupported format %d", desc.Name, desc.Format)
		return metadata.InvalidHandle
	}
	maxSize := r.Capabilities().MaxTextureSize
	if desc.Width == 0 || desc.Height == 0 || desc.Width > maxSize || desc.Height > maxSize {
		core.LogError("texture %q: invalid size %dx%d", desc.Name, desc.Width, desc.Height)
		return metadata.InvalidHandle
	}
	size := desc.ByteSize()
	if pixels != nil && uint64(len(pixels)) != size {
		core.LogError("texture %q: expected %d bytes of pixels, got %d", desc.Name, size, len(pixels))
		return metadata.InvalidHandle
	}

	h := r.textures.Reserve(desc.Flags)
	if !h.Valid {
		core.LogError("texture table exhausted (%d slots)", r.textures.Capacity())
		return metadata.InvalidHandle
	}
	tex, err := r.newTexture(desc, vf)
	if err != nil {
		r.textures.Release(h)
		core.LogError("creating texture %q: %s", desc.Name, err)
		return metadata.InvalidHandle
	}
	slot, _ := r.textures.TryGet(h)
	slot.Native = tex
	slot.Length = size

	if pixels != nil {
		if !r.upload(pendingCopy{kind: kindTexture, handle: h, created: true}, pixels) {
			r.textures.Release(h)
			r.destroyTexture(tex)
			return metadata.InvalidHandle
		}
		return h
	}
	// Without pixels the image still has to leave the undefined layout.
	if err := r.immediate(func(cmd vk.CommandBuffer) {
		tex.image.Transition(cmd, restingLayout(desc.Flags, desc.Format))
	}); err != nil {
		r.textures.Release(h)
		r.destroyTexture(tex)
		core.LogError("texture %q: initial transition: %s", desc.Name, err)
		return metadata.InvalidHandle
	}
	return h
}

func (r *VulkanRenderer) newTexture(desc metadata.TextureDescriptor, format vk.Format) (*vulkanTexture, error) {
	usage, aspect := textureUsage(desc)
	image, err := NewVulkanImage(r.context, desc.Width, desc.Height, format, usage, aspect)
	if err != nil {
		return nil, err
	}
	tex := &vulkanTexture{desc: desc, image: image}
	if aspect == vk.ImageAspectColorBit {
		if tex.descriptor, err = r.descriptors.Allocate(r.context, image.View); err != nil {
			r.destroyTexture(tex)
			return nil, err
		}
	}
	if desc.Flags.Has(metadata.ResourceFlagRenderTarget) && aspect == vk.ImageAspectColorBit {
		if tex.framebuffer, err = r.newTargetFramebuffer(image); err != nil {
			r.destroyTexture(tex)
			return nil, err
		}
	}
	return tex, nil
}

func (r *VulkanRenderer) destroyTexture(tex *vulkanTexture) {
	if tex.framebuffer != nil {
		tex.framebuffer.Destroy(r.context)
	}
	if tex.descriptor != vk.NullDescriptorSet {
		r.descriptors.Free(r.context, tex.descriptor)
	}
	tex.image.Destroy(r.context)
}

func (r *VulkanRenderer) UpdateTexture(handle metadata.ResourceHandle, region metadata.TextureRegion, pixels []byte) bool {
	if !r.initialized {
		return false
	}
	slot, ok := r.textures.TryGet(handle)
	if !ok {
		core.LogError("update of unknown texture %d", handle.Index)
		return false
	}
	desc := slot.Native.desc
	if region.IsZero() {
		region = metadata.TextureRegion{Width: desc.Width, Height: desc.Height}
	}
	if region.X+region.Width > desc.Width || region.Y+region.Height > desc.Height {
		core.LogError("texture %q: region %+v outside %dx%d", desc.Name, region, desc.Width, desc.Height)
		return false
	}
	want := uint64(region.Width) * uint64(region.Height) * uint64(desc.Format.BytesPerPixel())
	if uint64(len(pixels)) != want {
		core.LogError("texture %q: region needs %d bytes, got %d", desc.Name, want, len(pixels))
		return false
	}
	return r.upload(pendingCopy{kind: kindTexture, handle: handle, region: region}, pixels)
}

func (r *VulkanRenderer) ReadTexture(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool {
	return r.queueRead(kindTexture, handle, callback)
}

func (r *VulkanRenderer) DestroyTexture(handle metadata.ResourceHandle) {
	if !r.initialized {
		return
	}
	slot, ok := r.textures.Release(handle)
	if !ok {
		return
	}
	r.dropPending(kindTexture, handle)
	r.waitQueue()
	r.destroyTexture(slot.Native)
	r.released(kindTexture, handle)
}
