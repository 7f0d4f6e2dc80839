package geometry

import (
	"fmt"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/materials"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// Mesh is vertex data uploaded to the device. Triangles are not indexed.
// Material is used for nodes that do not carry their own.
type Mesh struct {
	Buffer        metadata.Buffer
	VertexCount   int
	BufferIndex   int
	PrimitiveType metadata.PrimitiveType
	Material      *materials.Material
}

// BuildMesh packs the vertices into one device buffer.
func BuildMesh(device metadata.Device, label string, vertices []Vertex) (*Mesh, error) {
	if len(vertices) == 0 {
		return nil, core.ErrEmptyMesh
	}
	buf, err := device.NewBufferWithBytes(PackVertices(vertices), label)
	if err != nil {
		return nil, fmt.Errorf("failed to upload mesh %q: %w", label, err)
	}
	return &Mesh{
		Buffer:        buf,
		VertexCount:   len(vertices),
		BufferIndex:   metadata.FirstFreeVertexBufferIndex,
		PrimitiveType: metadata.PrimitiveTypeTriangle,
	}, nil
}

// Draw binds the vertex buffer and issues one draw call for the whole mesh.
func (m *Mesh) Draw(encoder metadata.RenderCommandEncoder) {
	encoder.SetVertexBuffer(m.Buffer, 0, m.BufferIndex)
	encoder.DrawPrimitives(m.PrimitiveType, 0, m.VertexCount)
}
