package loaders

import (
	"fmt"
	"image"
	"os"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// ImageLoader decodes an image file into RGBA8 pixels.
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	p := &metadata.ImageResourceParams{}
	if typed, ok := params.(*metadata.ImageResourceParams); ok && typed != nil {
		p = typed
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	data := ToImageData(src, p)
	return &metadata.Resource{
		Name:     resourceName(path),
		FullPath: path,
		Type:     metadata.ResourceTypeImage,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(res *metadata.Resource) error {
	if res == nil {
		return fmt.Errorf("nil resource")
	}
	res.Data = nil
	return nil
}

// ToImageData converts any image into tightly packed RGBA8, applying the
// size limit and the vertical flip of params.
func ToImageData(src image.Image, params *metadata.ImageResourceParams) *metadata.ImageResourceData {
	bounds := src.Bounds()
	w, h := fitSize(bounds.Dx(), bounds.Dy(), params.MaxWidth, params.MaxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	if params.FlipY {
		row := make([]byte, dst.Stride)
		for y := 0; y < h/2; y++ {
			top := dst.Pix[y*dst.Stride : (y+1)*dst.Stride]
			bottom := dst.Pix[(h-1-y)*dst.Stride : (h-y)*dst.Stride]
			copy(row, top)
			copy(top, bottom)
			copy(bottom, row)
		}
	}
	return &metadata.ImageResourceData{Width: w, Height: h, Pixels: dst.Pix}
}

// fitSize scales w x h down to fit maxW x maxH. Zero limits are ignored.
func fitSize(w, h, maxW, maxH int) (int, int) {
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 && h > maxH {
		scale = min(scale, float64(maxH)/float64(h))
	}
	if scale == 1.0 {
		return w, h
	}
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}
