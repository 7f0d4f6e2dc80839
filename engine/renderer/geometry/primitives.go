package geometry

import (
	"image/color"

	"github.com/spaghettifunk/livewall/engine/math"
)

// ColorToVec4 converts c to non-premultiplied RGBA in [0, 1].
func ColorToVec4(c color.Color) math.Vec4 {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	return math.NewVec4(
		float32(nc.R)/255.0,
		float32(nc.G)/255.0,
		float32(nc.B)/255.0,
		float32(nc.A)/255.0,
	)
}

// Plane returns two triangles lying on y=0, centered on the origin.
func Plane(width, length float32, c color.Color) []Vertex {
	hw, hl := width/2, length/2
	col := ColorToVec4(c)
	up := math.NewVec3(0, 1, 0)

	return []Vertex{
		{Position: math.NewVec3(-hw, 0, hl), Normal: up, Color: col, Texcoord: math.NewVec2(0, 1)},
		{Position: math.NewVec3(hw, 0, hl), Normal: up, Color: col, Texcoord: math.NewVec2(1, 1)},
		{Position: math.NewVec3(hw, 0, -hl), Normal: up, Color: col, Texcoord: math.NewVec2(1, 0)},
		{Position: math.NewVec3(-hw, 0, hl), Normal: up, Color: col, Texcoord: math.NewVec2(0, 1)},
		{Position: math.NewVec3(hw, 0, -hl), Normal: up, Color: col, Texcoord: math.NewVec2(1, 0)},
		{Position: math.NewVec3(-hw, 0, -hl), Normal: up, Color: col, Texcoord: math.NewVec2(0, 0)},
	}
}

// CuboidColors holds one color per face.
type CuboidColors struct {
	Top, Right, Bottom, Left, Front, Back color.Color
}

// UniformCuboidColors paints every face with c.
func UniformCuboidColors(c color.Color) CuboidColors {
	return CuboidColors{Top: c, Right: c, Bottom: c, Left: c, Front: c, Back: c}
}

type corner struct {
	x, y, z float32
	u, v    float32
}

func face(corners [6]corner, hw, hh, hl float32, c color.Color) []Vertex {
	col := ColorToVec4(c)
	out := make([]Vertex, 0, 6)
	for _, k := range corners {
		out = append(out, Vertex{
			Position: math.NewVec3(k.x*hw, k.y*hh, k.z*hl),
			Color:    col,
			Texcoord: math.NewVec2(k.u, k.v),
		})
	}
	return out
}

// Cuboid returns 36 vertices, six per face in the order top, right, bottom,
// left, front, back. Vertices are duplicated per face so every face keeps
// its own color.
func Cuboid(width, height, length float32, colors CuboidColors) []Vertex {
	hw, hh, hl := width/2, height/2, length/2

	faces := []struct {
		corners [6]corner
		color   color.Color
	}{
		{[6]corner{{-1, 1, 1, 0, 1}, {1, 1, 1, 1, 1}, {1, 1, -1, 1, 0}, {-1, 1, 1, 0, 1}, {1, 1, -1, 1, 0}, {-1, 1, -1, 0, 0}}, colors.Top},
		{[6]corner{{1, -1, 1, 0, 1}, {1, -1, -1, 1, 1}, {1, 1, -1, 1, 0}, {1, -1, 1, 0, 1}, {1, 1, -1, 1, 0}, {1, 1, 1, 0, 0}}, colors.Right},
		{[6]corner{{-1, -1, 1, 0, 0}, {-1, -1, -1, 0, 1}, {1, -1, -1, 1, 1}, {-1, -1, 1, 0, 0}, {1, -1, -1, 1, 1}, {1, -1, 1, 1, 0}}, colors.Bottom},
		{[6]corner{{-1, -1, 1, 1, 1}, {-1, -1, -1, 0, 1}, {-1, 1, -1, 0, 0}, {-1, -1, 1, 1, 1}, {-1, 1, -1, 0, 0}, {-1, 1, 1, 1, 0}}, colors.Left},
		{[6]corner{{-1, -1, 1, 0, 1}, {1, -1, 1, 1, 1}, {1, 1, 1, 1, 0}, {-1, -1, 1, 0, 1}, {1, 1, 1, 1, 0}, {-1, 1, 1, 0, 0}}, colors.Front},
		{[6]corner{{1, -1, -1, 0, 1}, {-1, -1, -1, 1, 1}, {-1, 1, -1, 1, 0}, {1, -1, -1, 0, 1}, {-1, 1, -1, 1, 0}, {1, 1, -1, 0, 0}}, colors.Back},
	}

	out := make([]Vertex, 0, 36)
	for _, f := range faces {
		c := f.color
		if c == nil {
			c = color.White
		}
		out = append(out, face(f.corners, hw, hh, hl, c)...)
	}
	return out
}
