package math

// NewTransform returns an identity transform.
func NewTransform() Transform {
	return NewTransformFrom(NewVec3Zero(), NewQuatIdentity(), NewVec3One())
}

func NewTransformFrom(position Vec3, rotation Quaternion, scale Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: rotation,
		Scale:    scale,
		IsDirty:  true,
		Local:    NewMat4Identity(),
	}
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
	t.IsDirty = true
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
	t.IsDirty = true
}

func (t *Transform) SetRotation(rotation Quaternion) {
	t.Rotation = rotation
	t.IsDirty = true
}

func (t *Transform) Rotate(rotation Quaternion) {
	t.Rotation = t.Rotation.Mul(rotation)
	t.IsDirty = true
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
	t.IsDirty = true
}

// GetLocal returns scale, then rotation, then translation as one matrix.
func (t *Transform) GetLocal() Mat4 {
	if t == nil {
		return NewMat4Identity()
	}
	if t.IsDirty {
		rt := t.Rotation.ToMat4().Mul(NewMat4Translation(t.Position))
		t.Local = NewMat4Scale(t.Scale).Mul(rt)
		t.IsDirty = false
	}
	return t.Local
}

// World composes the local matrix with the already computed world matrix of the parent.
func (t *Transform) World(parentWorld Mat4) Mat4 {
	return t.GetLocal().Mul(parentWorld)
}
