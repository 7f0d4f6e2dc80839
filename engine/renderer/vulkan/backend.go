package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/spaghettifunk/livewall/engine/systems"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// Window is the part of the platform window the backend needs.
type Window interface {
	CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error)
	RequiredExtensionNames() []string
	FramebufferSize() (width, height int)
}

type Config struct {
	AppName        string
	Window         Window
	Shaders        ShaderSource
	InFlightFrames int
	Validation     bool
	VSync          bool
	PreferDiscrete bool
}

// Backend owns the Vulkan instance and everything created from it.
type Backend struct {
	config  Config
	context *VulkanContext
	device  *Device
	surface *Surface
}

// New brings up the instance, device, swapchain and per frame resources.
// Partially created objects are released when it fails.
func New(config Config) (*Backend, error) {
	if config.Window == nil || config.Shaders == nil {
		return nil, fmt.Errorf("vulkan backend needs a window and a shader source: %w", core.ErrUnsupportedConfig)
	}
	if config.InFlightFrames <= 0 {
		config.InFlightFrames = 3
	}
	if config.AppName == "" {
		config.AppName = "livewall"
	}

	width, height := config.Window.FramebufferSize()
	b := &Backend{
		config: config,
		context: &VulkanContext{
			FramebufferWidth:  uint32(width),
			FramebufferHeight: uint32(height),
			Locks:             NewVulkanLockPool(),
		},
	}
	if err := b.initialize(); err != nil {
		b.Shutdown()
		return nil, err
	}
	return b, nil
}

func (b *Backend) initialize() error {
	vc := b.context

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return errors.New("GetInstanceProcAddress is nil, is glfw initialized?")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vk: %w", err)
	}

	if err := b.createInstance(); err != nil {
		return err
	}
	if b.config.Validation {
		if err := b.createDebugCallback(); err != nil {
			// Validation output is optional.
			core.LogWarn("debug report callback unavailable: %s", err)
		}
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := b.config.Window.CreateWindowSurface(vc.Instance, nil)
	if err != nil {
		return fmt.Errorf("failed to create the window surface: %w", err)
	}
	vc.Surface = vk.SurfaceFromPointer(surface)

	if err := DeviceCreate(vc, b.config.PreferDiscrete); err != nil {
		return fmt.Errorf("failed to create the device: %w", err)
	}

	jobs, err := systems.NewJobSystem(b.config.InFlightFrames, b.config.InFlightFrames)
	if err != nil {
		return err
	}
	vc.Jobs = jobs

	sc, err := SwapchainCreate(vc, vc.FramebufferWidth, vc.FramebufferHeight, b.config.VSync)
	if err != nil {
		return fmt.Errorf("failed to create the swapchain: %w", err)
	}
	vc.Swapchain = sc

	rp, err := RenderpassCreate(vc, sc.ImageFormat.Format, vc.Device.DepthFormat)
	if err != nil {
		return err
	}
	vc.MainRenderpass = rp
	if err := sc.regenerateFramebuffers(vc, rp); err != nil {
		return err
	}
	vc.ImagesInFlight = make([]chan struct{}, sc.ImageCount)
	vc.cachedFramebufferWidth = sc.Extent.Width
	vc.cachedFramebufferHeight = sc.Extent.Height

	layout, err := NewPipelineLayout(vc)
	if err != nil {
		return err
	}
	vc.Layout = layout

	if err := vc.createFrames(b.config.InFlightFrames); err != nil {
		return err
	}

	b.surface = newSurface(vc, b.config.VSync)
	device, err := newDevice(vc, b.config.Shaders)
	if err != nil {
		return err
	}
	device.surface = b.surface
	b.device = device

	core.LogInfo("Vulkan backend initialized on %s with %d frames in flight.", vc.Device.Name, b.config.InFlightFrames)
	return nil
}

func (b *Backend) createInstance() error {
	vc := b.context
	appInfo := &vk.ApplicationInfo{
		SType: vk.StructureTypeApplicationInfo,
		// 1.1 for the negative viewport height.
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(b.config.AppName),
		PEngineName:        VulkanSafeString("livewall"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{"VK_KHR_surface"}
	for _, name := range b.config.Window.RequiredExtensionNames() {
		if !slices.Contains(extensions, name) {
			extensions = append(extensions, name)
		}
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if b.config.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		available, err := instanceLayers()
		if err != nil {
			return err
		}
		if slices.Contains(available, validationLayerName) {
			layers = append(layers, validationLayerName)
			core.LogInfo("Validation layer %s enabled.", validationLayerName)
		} else {
			core.LogWarn("Validation requested but %s is not installed.", validationLayerName)
		}
	}
	core.LogDebug("Instance extensions: %v", extensions)

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := checkResult(vk.CreateInstance(&createInfo, vc.Allocator, &instance), "vkCreateInstance"); err != nil {
		return err
	}
	vc.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan instance created.")
	return nil
}

func instanceLayers() ([]string, error) {
	var count uint32
	if err := checkResult(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, count)
	if err := checkResult(vk.EnumerateInstanceLayerProperties(&count, props), "vkEnumerateInstanceLayerProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, cString(props[i].LayerName[:]))
	}
	return names, nil
}

func (b *Backend) createDebugCallback() error {
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: debugReport,
	}
	var callback vk.DebugReportCallback
	if err := checkResult(vk.CreateDebugReportCallback(b.context.Instance, &createInfo, nil, &callback), "vkCreateDebugReportCallback"); err != nil {
		return err
	}
	b.context.debugCallback = callback
	return nil
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (b *Backend) Device() metadata.Device {
	return b.device
}

func (b *Backend) Surface() metadata.Surface {
	return b.surface
}

// Resized bumps the framebuffer size generation. The swapchain is recreated
// lazily by the next frame.
func (b *Backend) Resized(width, height int) error {
	vc := b.context
	vc.FramebufferWidth = uint32(max(width, 0))
	vc.FramebufferHeight = uint32(max(height, 0))
	vc.FramebufferSizeGeneration++
	core.LogDebug("Vulkan backend resized: w/h/gen: %d/%d/%d", width, height, vc.FramebufferSizeGeneration)
	return nil
}

// Shutdown destroys in the reverse order of creation. It tolerates a
// partially initialized backend.
func (b *Backend) Shutdown() error {
	vc := b.context
	if vc.Device != nil && vc.Device.LogicalDevice != nil {
		vc.waitFrames()
		vk.DeviceWaitIdle(vc.Device.LogicalDevice)

		if b.device != nil {
			b.device.Destroy()
		}
		vc.destroyFrames()
		if vc.Jobs != nil {
			_ = vc.Jobs.Shutdown()
		}
		if vc.Layout != nil {
			vc.Layout.Destroy(vc)
		}
		if vc.Swapchain != nil {
			vc.Swapchain.SwapchainDestroy(vc)
			vc.Swapchain = nil
		}
		if vc.MainRenderpass != nil {
			vc.MainRenderpass.RenderpassDestroy(vc)
		}
		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(vc)
	}

	if vc.Instance != nil {
		if vc.Surface != vk.NullSurface {
			vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
			vc.Surface = vk.NullSurface
		}
		if vc.debugCallback != vk.NullDebugReportCallback {
			vk.DestroyDebugReportCallback(vc.Instance, vc.debugCallback, vc.Allocator)
			vc.debugCallback = vk.NullDebugReportCallback
		}
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
	return nil
}
