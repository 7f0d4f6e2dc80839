package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

type Drawable struct {
	ID      int
	texture *Texture
}

func (d *Drawable) Texture() metadata.Texture {
	return d.texture
}

// Surface hands out offscreen drawables. It can be made unavailable to
// simulate a window that cannot be drawn to.
type Surface struct {
	mu        sync.Mutex
	width     int
	height    int
	available bool
	drawables int
}

func NewSurface(width, height int) *Surface {
	return &Surface{width: width, height: height, available: true}
}

func (s *Surface) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

func (s *Surface) SetDrawableSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

func (s *Surface) drawable() bool {
	return s.available && s.width > 0 && s.height > 0
}

func (s *Surface) CurrentRenderPassDescriptor() *metadata.RenderPassDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.drawable() {
		return nil
	}
	return &metadata.RenderPassDescriptor{ClearDepth: 1.0}
}

func (s *Surface) CurrentDrawable() metadata.Drawable {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.drawable() {
		return nil
	}
	s.drawables++
	return &Drawable{
		ID: s.drawables,
		texture: newTexture(metadata.TextureDescriptor{
			Width:       s.width,
			Height:      s.height,
			PixelFormat: metadata.PixelFormatBGRA8Unorm,
			Label:       fmt.Sprintf("drawable-%d", s.drawables),
		}),
	}
}

// Drawables returns how many drawables were handed out.
func (s *Surface) Drawables() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawables
}

func (s *Surface) DrawableSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *Surface) ColorPixelFormat() metadata.PixelFormat {
	return metadata.PixelFormatBGRA8Unorm
}

func (s *Surface) DepthStencilPixelFormat() metadata.PixelFormat {
	return metadata.PixelFormatDepth32Float
}
