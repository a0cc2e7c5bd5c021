package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.EventSet:                  "VK_EVENT_SET",
	vk.EventReset:                "VK_EVENT_RESET",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return "VK_RESULT_UNRECOGNIZED"
}

// VulkanResultIsSuccess reports whether result is a success code. Error codes are negative.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

// resultError builds an error for a failed call, marked with the closest core error.
func resultError(call string, result vk.Result) error {
	err := errors.Newf("%s failed with %s", call, VulkanResultString(result))
	switch result {
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorTooManyObjects:
		return errors.Mark(err, core.ErrResourceExhausted)
	case vk.ErrorFormatNotSupported, vk.ErrorFeatureNotPresent, vk.ErrorExtensionNotPresent,
		vk.ErrorLayerNotPresent, vk.ErrorIncompatibleDriver:
		return errors.Mark(err, core.ErrUnsupported)
	}
	return errors.Mark(err, core.ErrUnknown)
}

func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

var textureFormats = map[metadata.TextureFormat]vk.Format{
	metadata.TextureFormatRGBA8:    vk.FormatR8g8b8a8Unorm,
	metadata.TextureFormatBGRA8:    vk.FormatB8g8r8a8Unorm,
	metadata.TextureFormatR8:       vk.FormatR8Unorm,
	metadata.TextureFormatRG8:      vk.FormatR8g8Unorm,
	metadata.TextureFormatRGBA16F:  vk.FormatR16g16b16a16Sfloat,
	metadata.TextureFormatRGBA32F:  vk.FormatR32g32b32a32Sfloat,
	metadata.TextureFormatDepth32F: vk.FormatD32Sfloat,
}

func textureFormat(f metadata.TextureFormat) (vk.Format, bool) {
	format, ok := textureFormats[f]
	return format, ok
}

var attributeFormats = map[metadata.VertexAttributeType]vk.Format{
	metadata.VertexAttributeTypeFloat:       vk.FormatR32Sfloat,
	metadata.VertexAttributeTypeFloat2:      vk.FormatR32g32Sfloat,
	metadata.VertexAttributeTypeFloat3:      vk.FormatR32g32b32Sfloat,
	metadata.VertexAttributeTypeFloat4:      vk.FormatR32g32b32a32Sfloat,
	metadata.VertexAttributeTypeByte4:       vk.FormatR8g8b8a8Sint,
	metadata.VertexAttributeTypeByte4Norm:   vk.FormatR8g8b8a8Snorm,
	metadata.VertexAttributeTypeUByte4:      vk.FormatR8g8b8a8Uint,
	metadata.VertexAttributeTypeUByte4Norm:  vk.FormatR8g8b8a8Unorm,
	metadata.VertexAttributeTypeShort2:      vk.FormatR16g16Sint,
	metadata.VertexAttributeTypeShort2Norm:  vk.FormatR16g16Snorm,
	metadata.VertexAttributeTypeUShort2Norm: vk.FormatR16g16Unorm,
	metadata.VertexAttributeTypeShort4:      vk.FormatR16g16b16a16Sint,
	metadata.VertexAttributeTypeShort4Norm:  vk.FormatR16g16b16a16Snorm,
	metadata.VertexAttributeTypeUShort4Norm: vk.FormatR16g16b16a16Unorm,
	metadata.VertexAttributeTypeHalf2:       vk.FormatR16g16Sfloat,
	metadata.VertexAttributeTypeHalf4:       vk.FormatR16g16b16a16Sfloat,
	metadata.VertexAttributeTypeUInt:        vk.FormatR32Uint,
	metadata.VertexAttributeTypeUInt4:       vk.FormatR32g32b32a32Uint,
	metadata.VertexAttributeTypeInt4:        vk.FormatR32g32b32a32Sint,
}

func attributeFormat(t metadata.VertexAttributeType) (vk.Format, bool) {
	format, ok := attributeFormats[t]
	return format, ok
}
