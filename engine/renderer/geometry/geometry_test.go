package geometry

import (
	"image/color"
	"math/rand"
	"testing"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/math"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/spaghettifunk/livewall/engine/renderer/materials"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVertex(r *rand.Rand) Vertex {
	f := func() float32 { return r.Float32()*200 - 100 }
	return Vertex{
		Position: math.NewVec3(f(), f(), f()),
		Normal:   math.NewVec3(f(), f(), f()),
		Color:    math.NewVec4(f(), f(), f(), f()),
		Texcoord: math.NewVec2(f(), f()),
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, count := range []int{0, 1, 2, 36, 257} {
		vertices := make([]Vertex, count)
		for i := range vertices {
			vertices[i] = randomVertex(r)
		}
		data := PackVertices(vertices)
		assert.Len(t, data, count*VertexStride)

		out, err := UnpackVertices(data)
		require.NoError(t, err)
		require.Len(t, out, count)
		for i := range vertices {
			assert.Equal(t, vertices[i], out[i], "vertex %d", i)
		}
	}
}

func TestPackedLayout(t *testing.T) {
	v := Vertex{
		Position: math.NewVec3(1, 2, 3),
		Normal:   math.NewVec3(4, 5, 6),
		Color:    math.NewVec4(7, 8, 9, 10),
		Texcoord: math.NewVec2(11, 12),
	}
	floats := v.Floats()
	for i, f := range floats {
		assert.Equal(t, float32(i+1), f)
	}
	assert.Equal(t, materials.StandardVertexStride, VertexStride)
}

func TestUnpackRejectsPartialVertex(t *testing.T) {
	_, err := UnpackVertices(make([]byte, VertexStride+3))
	assert.ErrorIs(t, err, core.ErrInvalidVertexData)
}

func TestCuboidFaces(t *testing.T) {
	colors := CuboidColors{
		Top:    color.RGBA{R: 255, A: 255},
		Right:  color.RGBA{G: 255, A: 255},
		Bottom: color.RGBA{B: 255, A: 255},
		Left:   color.RGBA{R: 255, G: 255, A: 255},
		Front:  color.RGBA{G: 255, B: 255, A: 255},
		Back:   color.RGBA{R: 255, B: 255, A: 255},
	}
	vertices := Cuboid(2, 2, 2, colors)
	require.Len(t, vertices, 36)

	faces := []color.Color{colors.Top, colors.Right, colors.Bottom, colors.Left, colors.Front, colors.Back}
	for f, c := range faces {
		want := ColorToVec4(c)
		for _, v := range vertices[f*6 : f*6+6] {
			assert.Equal(t, want, v.Color, "face %d", f)
		}
	}

	// Every corner lies on the half extents.
	for _, v := range vertices {
		assert.InDelta(t, 1, mathAbs(v.Position.X), 1e-6)
		assert.InDelta(t, 1, mathAbs(v.Position.Y), 1e-6)
		assert.InDelta(t, 1, mathAbs(v.Position.Z), 1e-6)
	}
}

func TestCuboidDefaultsToWhite(t *testing.T) {
	vertices := Cuboid(1, 1, 1, CuboidColors{})
	for _, v := range vertices {
		assert.Equal(t, math.NewVec4(1, 1, 1, 1), v.Color)
	}
}

func TestPlane(t *testing.T) {
	vertices := Plane(5, 10, color.White)
	require.Len(t, vertices, 6)
	for _, v := range vertices {
		assert.Equal(t, float32(0), v.Position.Y)
		assert.InDelta(t, 2.5, mathAbs(v.Position.X), 1e-6)
		assert.InDelta(t, 5, mathAbs(v.Position.Z), 1e-6)
	}
}

func TestBuildMesh(t *testing.T) {
	device, err := headless.NewDevice(headless.Config{ManualCompletion: true})
	require.NoError(t, err)

	_, err = BuildMesh(device, "empty", nil)
	assert.ErrorIs(t, err, core.ErrEmptyMesh)

	mesh, err := BuildMesh(device, "cube", Cuboid(1, 1, 1, UniformCuboidColors(color.White)))
	require.NoError(t, err)
	assert.Equal(t, 36, mesh.VertexCount)
	assert.Equal(t, metadata.FirstFreeVertexBufferIndex, mesh.BufferIndex)
	assert.Equal(t, 36*VertexStride, mesh.Buffer.Length())
	assert.Equal(t, metadata.PrimitiveTypeTriangle, mesh.PrimitiveType)
}

func mathAbs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
