package materials

import "github.com/spaghettifunk/livewall/engine/renderer/metadata"

// StandardVertexStride matches the packed vertex: position, normal, color, texcoord.
const StandardVertexStride = 48

// StandardVertexDescriptor describes the packed vertex layout on the first
// vertex buffer index not reserved by the renderer.
func StandardVertexDescriptor() *metadata.VertexDescriptor {
	index := metadata.FirstFreeVertexBufferIndex
	return &metadata.VertexDescriptor{
		Attributes: []metadata.VertexAttributeDescriptor{
			{Format: metadata.VertexFormatFloat3, Offset: 0, BufferIndex: index},
			{Format: metadata.VertexFormatFloat3, Offset: 12, BufferIndex: index},
			{Format: metadata.VertexFormatFloat4, Offset: 24, BufferIndex: index},
			{Format: metadata.VertexFormatFloat2, Offset: 40, BufferIndex: index},
		},
		Layouts: map[int]metadata.VertexBufferLayoutDescriptor{
			index: {Stride: StandardVertexStride},
		},
	}
}

// StandardMaterial builds a material for the packed vertex layout with no
// culling and depth writes enabled.
func StandardMaterial(device metadata.Device, library metadata.Library, surface metadata.Surface, effect Effect, mainTexture, secondaryTexture *Texture) (*Material, error) {
	return BuildMaterial(device, library, Descriptor{
		Label:            effect.VertexFunction + "+" + effect.FragmentFunction,
		Effect:           effect,
		VertexDescriptor: StandardVertexDescriptor(),
		MainTexture:      mainTexture,
		SecondaryTexture: secondaryTexture,
		CullMode:         metadata.FaceCullModeNone,
		DepthWrite:       true,
		ColorPixelFormat: surface.ColorPixelFormat(),
		DepthPixelFormat: surface.DepthStencilPixelFormat(),
	})
}

// LinearSampler is the sampler used for textured wallpapers.
func LinearSampler(device metadata.Device) (metadata.SamplerState, error) {
	return device.NewSamplerState(metadata.SamplerDescriptor{
		MinFilter:    metadata.SamplerFilterLinear,
		MagFilter:    metadata.SamplerFilterLinear,
		AddressModeU: metadata.SamplerAddressModeClampToEdge,
		AddressModeV: metadata.SamplerAddressModeClampToEdge,
	})
}
