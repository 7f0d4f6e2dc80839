package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

// Quaternion is used to represent rotational orientation.
type Quaternion Vec4

// Mat4 is a 4x4 row-major matrix. Vectors are treated as rows, so a point is
// transformed as v * M and the translation lives in Data[12..14].
type Mat4 struct {
	Data [16]float32
}

// Transform holds position, rotation and scale of an object. The local
// matrix is cached and only rebuilt when one of the three components changes,
// so the fields should be edited through the setters.
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3

	IsDirty bool
	Local   Mat4
}
