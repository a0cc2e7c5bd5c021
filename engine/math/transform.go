package math

func TransformCreate() *Transform {
	return TransformFromPositionRotationScale(NewVec3Zero(), NewQuatIdentity(), NewVec3One())
}

func TransformFromPosition(position Vec3) *Transform {
	return TransformFromPositionRotationScale(position, NewQuatIdentity(), NewVec3One())
}

func TransformFromPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) *Transform {
	t := &Transform{Local: NewMat4Identity()}
	t.SetPositionRotationScale(position, rotation, scale)
	return t
}

func (t *Transform) touch() {
	t.IsDirty = true
	t.version++
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
	t.touch()
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
	t.touch()
}

func (t *Transform) SetRotation(rotation Quaternion) {
	t.Rotation = rotation
	t.touch()
}

func (t *Transform) Rotate(rotation Quaternion) {
	t.Rotation = t.Rotation.Mul(rotation)
	t.touch()
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
	t.touch()
}

func (t *Transform) SetPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) {
	t.Position = position
	t.Rotation = rotation
	t.Scale = scale
	t.touch()
}

func (t *Transform) SetParent(parent *Transform) {
	t.Parent = parent
	t.touch()
}

// Version increases whenever this transform or any of its parents change.
func (t *Transform) Version() uint64 {
	if t == nil {
		return 0
	}
	return t.version + t.Parent.Version()
}

/**
 * @brief Returns the local matrix (scale, then rotation, then translation),
 * rebuilding it when dirty.
 */
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

func (t *Transform) GetWorld() Mat4 {
	if t == nil {
		return NewMat4Identity()
	}
	l := t.GetLocal()
	if t.Parent != nil {
		return l.Mul(t.Parent.GetWorld())
	}
	return l
}
