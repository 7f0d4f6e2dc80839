package headless

import "github.com/spaghettifunk/livewall/engine/renderer/metadata"

// Backend pairs a headless device with its surface.
type Backend struct {
	device  *Device
	surface *Surface
}

func NewBackend(config Config) (*Backend, error) {
	device, err := NewDevice(config)
	if err != nil {
		return nil, err
	}
	return &Backend{device: device, surface: NewSurface(config.Width, config.Height)}, nil
}

func (b *Backend) Device() metadata.Device {
	return b.device
}

func (b *Backend) Surface() metadata.Surface {
	return b.surface
}

func (b *Backend) HeadlessDevice() *Device {
	return b.device
}

func (b *Backend) HeadlessSurface() *Surface {
	return b.surface
}

func (b *Backend) Resized(width, height int) error {
	b.surface.SetDrawableSize(width, height)
	return nil
}

func (b *Backend) Shutdown() error {
	b.device.Destroy()
	return nil
}
