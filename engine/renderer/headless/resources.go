package headless

import (
	"fmt"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

type Buffer struct {
	label string
	data  []byte
}

func (b *Buffer) Contents() []byte {
	return b.data
}

func (b *Buffer) Length() int {
	return len(b.data)
}

func (b *Buffer) Label() string {
	return b.label
}

type Texture struct {
	desc   metadata.TextureDescriptor
	pixels []byte
}

func newTexture(desc metadata.TextureDescriptor) *Texture {
	return &Texture{
		desc:   desc,
		pixels: make([]byte, desc.Width*desc.Height*desc.PixelFormat.BytesPerPixel()),
	}
}

func (t *Texture) Width() int {
	return t.desc.Width
}

func (t *Texture) Height() int {
	return t.desc.Height
}

func (t *Texture) PixelFormat() metadata.PixelFormat {
	return t.desc.PixelFormat
}

func (t *Texture) Label() string {
	return t.desc.Label
}

func (t *Texture) Pixels() []byte {
	return t.pixels
}

func (t *Texture) ReplaceRegion(pixels []byte) error {
	if len(pixels) != len(t.pixels) {
		return fmt.Errorf("texture %q expects %d bytes, got %d", t.desc.Label, len(t.pixels), len(pixels))
	}
	copy(t.pixels, pixels)
	return nil
}

type SamplerState struct {
	desc metadata.SamplerDescriptor
}

func (s *SamplerState) Descriptor() metadata.SamplerDescriptor {
	return s.desc
}

type DepthStencilState struct {
	desc metadata.DepthStencilDescriptor
}

func (s *DepthStencilState) Descriptor() metadata.DepthStencilDescriptor {
	return s.desc
}

type RenderPipelineState struct {
	desc metadata.RenderPipelineDescriptor
}

func (p *RenderPipelineState) Label() string {
	return p.desc.Label
}

func (p *RenderPipelineState) Descriptor() metadata.RenderPipelineDescriptor {
	return p.desc
}

type ComputePipelineState struct {
	kernel string
}

func (p *ComputePipelineState) Label() string {
	return p.kernel
}

func (p *ComputePipelineState) MaxTotalThreadsPerThreadgroup() int {
	return 1024
}

// validateVertexLayout checks that every input of the vertex function is fed
// by an attribute of the same format inside a declared buffer layout.
func validateVertexLayout(fn *Function, vd *metadata.VertexDescriptor) error {
	if vd == nil {
		return fmt.Errorf("%w: no vertex descriptor", core.ErrVertexLayoutMismatch)
	}
	inputs := fn.Inputs()
	if len(vd.Attributes) < len(inputs) {
		return fmt.Errorf("%w: %s reads %d attributes, layout provides %d",
			core.ErrVertexLayoutMismatch, fn.Name(), len(inputs), len(vd.Attributes))
	}
	for location, format := range inputs {
		attr := vd.Attributes[location]
		if attr.Format != format {
			return fmt.Errorf("%w: %s attribute %d is %s, layout provides %s",
				core.ErrVertexLayoutMismatch, fn.Name(), location, format, attr.Format)
		}
		if attr.BufferIndex < metadata.FirstFreeVertexBufferIndex {
			return fmt.Errorf("%w: attribute %d uses reserved buffer index %d",
				core.ErrVertexLayoutMismatch, location, attr.BufferIndex)
		}
		layout, ok := vd.Layouts[attr.BufferIndex]
		if !ok {
			return fmt.Errorf("%w: no layout for buffer index %d", core.ErrVertexLayoutMismatch, attr.BufferIndex)
		}
		if attr.Offset+attr.Format.Size() > layout.Stride {
			return fmt.Errorf("%w: attribute %d ends past stride %d", core.ErrVertexLayoutMismatch, location, layout.Stride)
		}
	}
	return nil
}
