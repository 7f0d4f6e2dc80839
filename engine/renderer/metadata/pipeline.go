package metadata

import "slices"

// Fixed argument table indices shared by every program.
const (
	UniformBufferIndex         = 0
	ModelMatrixBufferIndex     = 1
	FirstFreeVertexBufferIndex = 2

	MainTextureIndex      = 0
	SecondaryTextureIndex = 1
)

type VertexFormat int

const (
	VertexFormatInvalid VertexFormat = iota
	VertexFormatFloat2
	VertexFormatFloat3
	VertexFormatFloat4
)

// Size returns the number of bytes one attribute of format f occupies.
func (f VertexFormat) Size() int {
	switch f {
	case VertexFormatFloat2:
		return 8
	case VertexFormatFloat3:
		return 12
	case VertexFormatFloat4:
		return 16
	}
	return 0
}

func (f VertexFormat) String() string {
	switch f {
	case VertexFormatFloat2:
		return "float2"
	case VertexFormatFloat3:
		return "float3"
	case VertexFormatFloat4:
		return "float4"
	}
	return "invalid"
}

type VertexAttributeDescriptor struct {
	Format      VertexFormat
	Offset      int
	BufferIndex int
}

type VertexBufferLayoutDescriptor struct {
	Stride int
}

// VertexDescriptor maps attribute locations (slice index) onto vertex buffers.
type VertexDescriptor struct {
	Attributes []VertexAttributeDescriptor
	Layouts    map[int]VertexBufferLayoutDescriptor
}

// BufferIndices returns the distinct buffer indices used by the attributes,
// in ascending order.
func (d *VertexDescriptor) BufferIndices() []int {
	seen := map[int]bool{}
	var out []int
	for _, a := range d.Attributes {
		if !seen[a.BufferIndex] {
			seen[a.BufferIndex] = true
			out = append(out, a.BufferIndex)
		}
	}
	slices.Sort(out)
	return out
}

type RenderPipelineDescriptor struct {
	Label            string
	VertexFunction   Function
	FragmentFunction Function
	VertexDescriptor *VertexDescriptor
	ColorPixelFormat PixelFormat
	DepthPixelFormat PixelFormat
}
