package components

import (
	"github.com/spaghettifunk/livewall/engine/math"
)

const (
	DefaultFieldOfView float32 = 65.0
	DefaultNearClip    float32 = 0.1
	DefaultFarClip     float32 = 100.0

	// 89 degrees, keeps pitch away from gimbal lock.
	pitchLimit float32 = 1.55334306
)

// Camera holds a position and Euler rotation (pitch, yaw, roll) plus the
// perspective parameters. View and projection matrices are rebuilt lazily,
// so fields should be changed through the setters.
type Camera struct {
	position      math.Vec3
	eulerRotation math.Vec3
	viewDirty     bool
	viewMatrix    math.Mat4

	fieldOfView     float32
	aspectRatio     float32
	nearClip        float32
	farClip         float32
	projectionDirty bool
	projection      math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.eulerRotation = math.NewVec3Zero()
	c.position = math.NewVec3Zero()
	c.viewMatrix = math.NewMat4Identity()
	c.viewDirty = false

	c.fieldOfView = math.DegToRad(DefaultFieldOfView)
	c.aspectRatio = 1.0
	c.nearClip = DefaultNearClip
	c.farClip = DefaultFarClip
	c.projectionDirty = true
}

func (c *Camera) Position() math.Vec3 {
	return c.position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.position = position
	c.viewDirty = true
}

func (c *Camera) EulerRotation() math.Vec3 {
	return c.eulerRotation
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.eulerRotation = rotation
	c.viewDirty = true
}

// View returns the inverse of the camera's world transform.
func (c *Camera) View() math.Mat4 {
	if c.viewDirty {
		rotation := math.NewMat4EulerXYZ(c.eulerRotation.X, c.eulerRotation.Y, c.eulerRotation.Z)
		translation := math.NewMat4Translation(c.position)
		c.viewMatrix = rotation.Mul(translation).Inverse()
		c.viewDirty = false
	}
	return c.viewMatrix
}

func (c *Camera) AspectRatio() float32 {
	return c.aspectRatio
}

// SetAspectRatio ignores non-positive ratios, which happen while a window is minimized.
func (c *Camera) SetAspectRatio(ratio float32) {
	if ratio <= 0 {
		return
	}
	c.aspectRatio = ratio
	c.projectionDirty = true
}

func (c *Camera) FieldOfView() float32 {
	return c.fieldOfView
}

// SetFieldOfView takes the vertical field of view in radians.
func (c *Camera) SetFieldOfView(radians float32) {
	c.fieldOfView = radians
	c.projectionDirty = true
}

func (c *Camera) SetClipPlanes(near, far float32) {
	c.nearClip = near
	c.farClip = far
	c.projectionDirty = true
}

func (c *Camera) Projection() math.Mat4 {
	if c.projectionDirty {
		c.projection = math.NewMat4Perspective(c.fieldOfView, c.aspectRatio, c.nearClip, c.farClip)
		c.projectionDirty = false
	}
	return c.projection
}

// ViewProjection maps world space to clip space.
func (c *Camera) ViewProjection() math.Mat4 {
	return c.View().Mul(c.Projection())
}

func (c *Camera) Forward() math.Vec3 {
	return c.View().Forward()
}

func (c *Camera) Right() math.Vec3 {
	return c.View().Right()
}

func (c *Camera) MoveForward(amount float32) {
	c.position = c.position.Add(c.Forward().MulScalar(amount))
	c.viewDirty = true
}

func (c *Camera) MoveBackward(amount float32) {
	c.MoveForward(-amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.position = c.position.Add(c.Right().MulScalar(amount))
	c.viewDirty = true
}

func (c *Camera) MoveLeft(amount float32) {
	c.MoveRight(-amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.position = c.position.Add(math.NewVec3Up().MulScalar(amount))
	c.viewDirty = true
}

func (c *Camera) Yaw(amount float32) {
	c.eulerRotation.Y += amount
	c.viewDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.eulerRotation.X = math.Clamp(c.eulerRotation.X+amount, -pitchLimit, pitchLimit)
	c.viewDirty = true
}
