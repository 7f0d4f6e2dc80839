package metadata

import "image/color"

// Determines face culling mode during rendering.
type FaceCullMode int

const (
	FaceCullModeNone FaceCullMode = iota
	FaceCullModeFront
	FaceCullModeBack
)

type PrimitiveType int

const (
	PrimitiveTypeTriangle PrimitiveType = iota
	PrimitiveTypeTriangleStrip
	PrimitiveTypeLine
	PrimitiveTypePoint
)

type PixelFormat int

const (
	PixelFormatInvalid PixelFormat = iota
	PixelFormatRGBA8Unorm
	PixelFormatBGRA8Unorm
	PixelFormatDepth32Float
)

// BytesPerPixel returns 0 for PixelFormatInvalid.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGBA8Unorm, PixelFormatBGRA8Unorm, PixelFormatDepth32Float:
		return 4
	}
	return 0
}

type ShaderStage int

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
	ShaderStageKernel
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageKernel:
		return "kernel"
	}
	return "unknown"
}

type CommandBufferStatus int

const (
	CommandBufferStatusNotEnqueued CommandBufferStatus = iota
	CommandBufferStatusCommitted
	CommandBufferStatusCompleted
	CommandBufferStatusError
)

type CompareFunction int

const (
	CompareFunctionAlways CompareFunction = iota
	CompareFunctionLess
	CompareFunctionLessEqual
	CompareFunctionNever
)

type SamplerFilter int

const (
	SamplerFilterNearest SamplerFilter = iota
	SamplerFilterLinear
)

type SamplerAddressMode int

const (
	SamplerAddressModeClampToEdge SamplerAddressMode = iota
	SamplerAddressModeRepeat
)

// ClearColor is a linear RGBA color with components in [0, 1].
type ClearColor struct {
	Red, Green, Blue, Alpha float64
}

// ClearColorFrom converts any color.Color, ignoring premultiplication of alpha.
func ClearColorFrom(c color.Color) ClearColor {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	return ClearColor{
		Red:   float64(nc.R) / 255.0,
		Green: float64(nc.G) / 255.0,
		Blue:  float64(nc.B) / 255.0,
		Alpha: float64(nc.A) / 255.0,
	}
}

type Size struct {
	Width, Height, Depth int
}

type TextureDescriptor struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
	Label       string
}

type SamplerDescriptor struct {
	MinFilter    SamplerFilter
	MagFilter    SamplerFilter
	AddressModeU SamplerAddressMode
	AddressModeV SamplerAddressMode
}

type DepthStencilDescriptor struct {
	DepthCompareFunction CompareFunction
	DepthWriteEnabled    bool
}

// RenderPassDescriptor describes the single forward pass of a frame.
type RenderPassDescriptor struct {
	ClearColor ClearColor
	ClearDepth float64
}
