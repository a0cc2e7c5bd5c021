package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-5

func TestQuaternionRotatesRowVector(t *testing.T) {
	q := NewQuatFromAxisAngle(NewVec3(0, 0, 1), DegToRad(90), true)
	v := NewVec3(1, 0, 0).Transform(q.ToMat4())
	assert.True(t, v.Compare(NewVec3(0, 1, 0), eps), "got %v", v)
}

func TestMat4InverseRoundTrip(t *testing.T) {
	tr := TransformFromPositionRotationScale(
		NewVec3(3, -2, 5),
		NewQuatFromAxisAngle(NewVec3(0, 1, 0), DegToRad(30), true),
		NewVec3(2, 2, 2),
	)
	m := tr.GetWorld()
	inv, ok := m.Inverse()
	assert.True(t, ok)
	assert.True(t, m.Mul(inv).Compare(NewMat4Identity(), 1e-4))

	p := NewVec3(1, 2, 3)
	assert.True(t, p.Transform(m).Transform(inv).Compare(p, 1e-4))
}

func TestMat4InverseSingular(t *testing.T) {
	_, ok := Mat4{}.Inverse()
	assert.False(t, ok)
}

func TestTransformWorldAppliesParent(t *testing.T) {
	parent := TransformFromPosition(NewVec3(10, 0, 0))
	child := TransformFromPosition(NewVec3(0, 1, 0))
	child.SetParent(parent)

	p := NewVec3Zero().Transform(child.GetWorld())
	assert.True(t, p.Compare(NewVec3(10, 1, 0), eps))
}

func TestTransformVersionTracksParent(t *testing.T) {
	parent := TransformCreate()
	child := TransformCreate()
	child.SetParent(parent)

	v := child.Version()
	assert.Equal(t, v, child.Version())
	parent.Translate(NewVec3(1, 0, 0))
	assert.Greater(t, child.Version(), v)
}

func TestExtentsTransform(t *testing.T) {
	e := ExtentsFromPoints([]Vec3{{-1, -1, -1}, {1, 1, 1}})
	moved := e.Transform(NewMat4Translation(NewVec3(5, 0, 0)))
	assert.True(t, moved.Min.Compare(NewVec3(4, -1, -1), eps))
	assert.True(t, moved.Max.Compare(NewVec3(6, 1, 1), eps))
	assert.True(t, NewExtentsEmpty().IsEmpty())
	assert.Equal(t, e, e.Union(NewExtentsEmpty()))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(7, 0, 3))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}
