package vulkan

import (
	vk "github.com/goki/vulkan"
)

// The diffuse texture is bound at set 0, binding 0 as a combined image sampler.
const diffuseSamplerBinding uint32 = 0

/**
 * @brief Hands out one descriptor set per sampled texture. Every set shares
 * the same layout and sampler.
 */
type VulkanDescriptorAllocator struct {
	Layout  vk.DescriptorSetLayout
	Pool    vk.DescriptorPool
	Sampler vk.Sampler
}

func NewDescriptorAllocator(context *VulkanContext, maxSets uint32) (*VulkanDescriptorAllocator, error) {
	device := context.Device.LogicalDevice
	out := &VulkanDescriptorAllocator{}

	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         diffuseSamplerBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}},
	}, context.Allocator, &layout)
	if res != vk.Success {
		return nil, resultError("vkCreateDescriptorSetLayout", res)
	}
	out.Layout = layout

	var pool vk.DescriptorPool
	res = vk.CreateDescriptorPool(device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxSets,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: maxSets,
		}},
	}, context.Allocator, &pool)
	if res != vk.Success {
		out.Destroy(context)
		return nil, resultError("vkCreateDescriptorPool", res)
	}
	out.Pool = pool

	anisotropy := context.Device.Features.SamplerAnisotropy == vk.True
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if anisotropy {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = context.Device.Properties.Limits.MaxSamplerAnisotropy
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(device, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		out.Destroy(context)
		return nil, resultError("vkCreateSampler", res)
	}
	out.Sampler = sampler
	return out, nil
}

// Allocate returns a set sampling view, which must be in shader read-only layout when drawn.
func (d *VulkanDescriptorAllocator) Allocate(context *VulkanContext, view vk.ImageView) (vk.DescriptorSet, error) {
	device := context.Device.LogicalDevice
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.Layout},
	}, &set)
	if res != vk.Success {
		return vk.NullDescriptorSet, resultError("vkAllocateDescriptorSets", res)
	}
	vk.UpdateDescriptorSets(device, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      diffuseSamplerBinding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     d.Sampler,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}}, 0, nil)
	return set, nil
}

func (d *VulkanDescriptorAllocator) Free(context *VulkanContext, set vk.DescriptorSet) {
	vk.FreeDescriptorSets(context.Device.LogicalDevice, d.Pool, 1, []vk.DescriptorSet{set})
}

func (d *VulkanDescriptorAllocator) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if d.Sampler != vk.NullSampler {
		vk.DestroySampler(device, d.Sampler, context.Allocator)
		d.Sampler = vk.NullSampler
	}
	if d.Pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(device, d.Pool, context.Allocator)
		d.Pool = vk.NullDescriptorPool
	}
	if d.Layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, d.Layout, context.Allocator)
		d.Layout = vk.NullDescriptorSetLayout
	}
}
