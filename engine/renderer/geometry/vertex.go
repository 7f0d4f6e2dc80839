package geometry

import (
	"encoding/binary"
	"fmt"
	m "math"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
)

const (
	// VertexFloatCount is the number of float32 values in one packed vertex.
	VertexFloatCount = 12
	// VertexStride is the size in bytes of one packed vertex.
	VertexStride = VertexFloatCount * 4
)

// Vertex is packed in declaration order: position, normal, color, texcoord.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	Color    math.Vec4
	Texcoord math.Vec2
}

func (v Vertex) Floats() [VertexFloatCount]float32 {
	return [VertexFloatCount]float32{
		v.Position.X, v.Position.Y, v.Position.Z,
		v.Normal.X, v.Normal.Y, v.Normal.Z,
		v.Color.X, v.Color.Y, v.Color.Z, v.Color.W,
		v.Texcoord.X, v.Texcoord.Y,
	}
}

func vertexFromFloats(f [VertexFloatCount]float32) Vertex {
	return Vertex{
		Position: math.NewVec3(f[0], f[1], f[2]),
		Normal:   math.NewVec3(f[3], f[4], f[5]),
		Color:    math.NewVec4(f[6], f[7], f[8], f[9]),
		Texcoord: math.NewVec2(f[10], f[11]),
	}
}

// PackVertices lays the vertices out contiguously as little endian float32.
func PackVertices(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*VertexStride)
	offset := 0
	for _, v := range vertices {
		for _, f := range v.Floats() {
			binary.LittleEndian.PutUint32(out[offset:], m.Float32bits(f))
			offset += 4
		}
	}
	return out
}

func UnpackVertices(data []byte) ([]Vertex, error) {
	if len(data)%VertexStride != 0 {
		return nil, fmt.Errorf("%w: %d bytes", core.ErrInvalidVertexData, len(data))
	}
	out := make([]Vertex, 0, len(data)/VertexStride)
	for offset := 0; offset < len(data); offset += VertexStride {
		var f [VertexFloatCount]float32
		for i := range f {
			f[i] = m.Float32frombits(binary.LittleEndian.Uint32(data[offset+i*4:]))
		}
		out = append(out, vertexFromFloats(f))
	}
	return out, nil
}
