package metadata

// ImageResourceData holds tightly packed RGBA8 pixels, row 0 first.
type ImageResourceData struct {
	Width  int
	Height int
	Pixels []byte
}

// TextureDescriptor returns the descriptor of a texture that can hold the image.
func (d *ImageResourceData) TextureDescriptor(label string) TextureDescriptor {
	return TextureDescriptor{
		Width:       d.Width,
		Height:      d.Height,
		PixelFormat: PixelFormatRGBA8Unorm,
		Label:       label,
	}
}

// Parameters used when loading an image.
type ImageResourceParams struct {
	// Flip the image on the y-axis.
	FlipY bool
	// Downscale images larger than MaxWidth x MaxHeight, keeping the aspect
	// ratio. Zero disables the limit.
	MaxWidth  int
	MaxHeight int
}
