package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// acquireTimeout bounds a single vkAcquireNextImage call. A timeout skips
// the frame.
const acquireTimeout = uint64(1_000_000_000)

// swapchainTexture describes a swapchain image. It cannot be written from
// the CPU.
type swapchainTexture struct {
	width, height int
	format        metadata.PixelFormat
}

func (t *swapchainTexture) Width() int                       { return t.width }
func (t *swapchainTexture) Height() int                      { return t.height }
func (t *swapchainTexture) PixelFormat() metadata.PixelFormat { return t.format }

func (t *swapchainTexture) ReplaceRegion([]byte) error {
	return errors.New("swapchain images are not host writable")
}

type Drawable struct {
	index   uint32
	texture *swapchainTexture
}

func (d *Drawable) Texture() metadata.Texture {
	return d.texture
}

// Surface presents into the window swapchain. It is only used on the render
// timeline.
type Surface struct {
	context *VulkanContext
	vsync   bool

	drawable *Drawable
}

func newSurface(context *VulkanContext, vsync bool) *Surface {
	return &Surface{context: context, vsync: vsync}
}

// ready recreates the swapchain when the window changed size. It reports
// false while the window has no drawable area.
func (s *Surface) ready() bool {
	vc := s.context
	if vc.FramebufferWidth == 0 || vc.FramebufferHeight == 0 {
		return false
	}
	if vc.imageAcquired {
		return true
	}
	if vc.Swapchain == nil || vc.FramebufferSizeGeneration != vc.FramebufferSizeLastGeneration {
		if err := s.recreateSwapchain(); err != nil {
			if !errors.Is(err, core.ErrSwapchainBooting) {
				core.LogError("failed to recreate the swapchain: %s", err)
			}
			return false
		}
	}
	return vc.Swapchain != nil
}

func (s *Surface) recreateSwapchain() error {
	vc := s.context
	if vc.RecreatingSwapchain {
		return core.ErrSwapchainBooting
	}
	vc.RecreatingSwapchain = true
	defer func() { vc.RecreatingSwapchain = false }()

	vc.waitFrames()
	vk.DeviceWaitIdle(vc.Device.LogicalDevice)
	for i := range vc.ImagesInFlight {
		vc.ImagesInFlight[i] = nil
	}

	if err := DeviceQuerySwapchainSupport(vc.Device.PhysicalDevice, vc.Surface, &vc.Device.SwapchainSupport); err != nil {
		return err
	}

	var (
		sc  *VulkanSwapchain
		err error
	)
	if vc.Swapchain == nil {
		sc, err = SwapchainCreate(vc, vc.FramebufferWidth, vc.FramebufferHeight, s.vsync)
	} else {
		sc, err = vc.Swapchain.SwapchainRecreate(vc, vc.FramebufferWidth, vc.FramebufferHeight, s.vsync)
	}
	vc.Swapchain = sc
	if err != nil {
		if sc != nil {
			sc.SwapchainDestroy(vc)
			vc.Swapchain = nil
		}
		return err
	}
	if err := sc.regenerateFramebuffers(vc, vc.MainRenderpass); err != nil {
		return err
	}
	vc.ImagesInFlight = make([]chan struct{}, sc.ImageCount)
	vc.cachedFramebufferWidth = sc.Extent.Width
	vc.cachedFramebufferHeight = sc.Extent.Height
	vc.FramebufferSizeLastGeneration = vc.FramebufferSizeGeneration
	return nil
}

func (s *Surface) CurrentRenderPassDescriptor() *metadata.RenderPassDescriptor {
	if !s.ready() {
		return nil
	}
	return &metadata.RenderPassDescriptor{ClearDepth: 1.0}
}

// CurrentDrawable acquires the next swapchain image. An image acquired by a
// frame that was dropped before commit is handed out again.
func (s *Surface) CurrentDrawable() metadata.Drawable {
	vc := s.context
	if vc.imageAcquired && s.drawable != nil {
		return s.drawable
	}
	if !s.ready() {
		return nil
	}

	frame := vc.frame()
	frame.wait()

	index, ok, err := vc.Swapchain.SwapchainAcquireNextImageIndex(vc, acquireTimeout, frame.ImageAvailable, vk.NullFence)
	if err != nil {
		core.LogError("failed to acquire a swapchain image: %s", err)
		return nil
	}
	if !ok {
		vc.FramebufferSizeGeneration++
		return nil
	}
	if ch := vc.ImagesInFlight[index]; ch != nil {
		<-ch
	}

	vc.ImageIndex = index
	vc.imageAcquired = true
	s.drawable = &Drawable{
		index: index,
		texture: &swapchainTexture{
			width:  int(vc.Swapchain.Extent.Width),
			height: int(vc.Swapchain.Extent.Height),
			format: fromVulkanFormat(vc.Swapchain.ImageFormat.Format),
		},
	}
	return s.drawable
}

// present queues the acquired image after the frame's rendering. An out of
// date swapchain is recreated before the next frame.
func (s *Surface) present(drawable *Drawable) error {
	vc := s.context
	vc.imageAcquired = false
	s.drawable = nil

	ok, err := vc.Swapchain.SwapchainPresent(vc, vc.Device.PresentQueue, vc.frame().QueueComplete, drawable.index)
	if err != nil {
		return fmt.Errorf("failed to present: %w", err)
	}
	if !ok {
		vc.FramebufferSizeGeneration++
	}
	return nil
}

func (s *Surface) DrawableSize() (int, int) {
	vc := s.context
	if vc.Swapchain != nil && vc.FramebufferSizeGeneration == vc.FramebufferSizeLastGeneration {
		return int(vc.cachedFramebufferWidth), int(vc.cachedFramebufferHeight)
	}
	return int(vc.FramebufferWidth), int(vc.FramebufferHeight)
}

func (s *Surface) ColorPixelFormat() metadata.PixelFormat {
	return fromVulkanFormat(s.context.MainRenderpass.ColorFormat)
}

func (s *Surface) DepthStencilPixelFormat() metadata.PixelFormat {
	return fromVulkanFormat(s.context.MainRenderpass.DepthFormat)
}
