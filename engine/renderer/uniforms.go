package renderer

import (
	"encoding/binary"
	m "math"

	"github.com/spaghettifunk/livewall/engine/math"
)

// UniformsSize is the byte size of the per-frame uniform block.
const UniformsSize = 224

// Uniforms is the per-frame data shared by every program. The byte layout
// follows std140 so the same block can be declared in GLSL and MSL:
//
//	offset   0  float time
//	offset   8  vec2  touchPoint
//	offset  16  ivec2 resolution
//	offset  32  mat4  view
//	offset  96  mat4  inverseView
//	offset 160  mat4  viewProjection
type Uniforms struct {
	Time           float32
	TouchPoint     math.Vec2
	Resolution     [2]int32
	View           math.Mat4
	InverseView    math.Mat4
	ViewProjection math.Mat4
}

// DefaultTouchPoint lies outside normalized device coordinates, meaning no touch.
var DefaultTouchPoint = math.NewVec2(-2.0, -2.0)

// WriteTo encodes u into dst, which must hold at least UniformsSize bytes.
func (u *Uniforms) WriteTo(dst []byte) {
	le := binary.LittleEndian
	clear(dst[:UniformsSize])

	le.PutUint32(dst[0:], m.Float32bits(u.Time))
	le.PutUint32(dst[8:], m.Float32bits(u.TouchPoint.X))
	le.PutUint32(dst[12:], m.Float32bits(u.TouchPoint.Y))
	le.PutUint32(dst[16:], uint32(u.Resolution[0]))
	le.PutUint32(dst[20:], uint32(u.Resolution[1]))
	copy(dst[32:96], u.View.Bytes())
	copy(dst[96:160], u.InverseView.Bytes())
	copy(dst[160:224], u.ViewProjection.Bytes())
}

func (u *Uniforms) Bytes() []byte {
	out := make([]byte, UniformsSize)
	u.WriteTo(out)
	return out
}
