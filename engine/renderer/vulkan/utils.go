package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.Suboptimal:                "VK_SUBOPTIMAL_KHR",
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
	vk.ErrorSurfaceLost:          "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:    "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorInvalidShaderNv:      "VK_ERROR_INVALID_SHADER_NV",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// VulkanResultIsSuccess treats every non-negative result code as success.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= 0
}

// checkResult turns a failed call into an error naming op. Device loss wraps
// core.ErrDeviceLost so callers can latch it.
func checkResult(result vk.Result, op string) error {
	if VulkanResultIsSuccess(result) {
		return nil
	}
	if result == vk.ErrorDeviceLost {
		return fmt.Errorf("%s: %w", op, core.ErrDeviceLost)
	}
	return fmt.Errorf("%s failed with %s", op, VulkanResultString(result))
}

func isDeviceLost(err error) bool {
	return errors.Is(err, core.ErrDeviceLost)
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
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

// cString trims a fixed size, zero terminated name returned by the driver.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}

// sliceUint32 reinterprets SPIR-V bytes as words. len(data) must be a
// multiple of four.
func sliceUint32(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func clampUint32(value, min, max uint32) uint32 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func vertexFormat(f metadata.VertexFormat) vk.Format {
	switch f {
	case metadata.VertexFormatFloat2:
		return vk.FormatR32g32Sfloat
	case metadata.VertexFormatFloat3:
		return vk.FormatR32g32b32Sfloat
	case metadata.VertexFormatFloat4:
		return vk.FormatR32g32b32a32Sfloat
	}
	return vk.FormatUndefined
}

func pixelFormat(f metadata.PixelFormat) vk.Format {
	switch f {
	case metadata.PixelFormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case metadata.PixelFormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case metadata.PixelFormatDepth32Float:
		return vk.FormatD32Sfloat
	}
	return vk.FormatUndefined
}

func fromVulkanFormat(f vk.Format) metadata.PixelFormat {
	switch f {
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb:
		return metadata.PixelFormatRGBA8Unorm
	case vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
		return metadata.PixelFormatBGRA8Unorm
	case vk.FormatD32Sfloat:
		return metadata.PixelFormatDepth32Float
	}
	return metadata.PixelFormatInvalid
}

func cullMode(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func compareOp(fn metadata.CompareFunction) vk.CompareOp {
	switch fn {
	case metadata.CompareFunctionLess:
		return vk.CompareOpLess
	case metadata.CompareFunctionLessEqual:
		return vk.CompareOpLessOrEqual
	case metadata.CompareFunctionNever:
		return vk.CompareOpNever
	}
	return vk.CompareOpAlways
}

func topology(p metadata.PrimitiveType) vk.PrimitiveTopology {
	switch p {
	case metadata.PrimitiveTypeTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.PrimitiveTypeLine:
		return vk.PrimitiveTopologyLineList
	case metadata.PrimitiveTypePoint:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}
