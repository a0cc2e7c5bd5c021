package components

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/lumen/engine/math"
)

func box(center math.Vec3) math.Extents3D {
	half := math.NewVec3(0.5, 0.5, 0.5)
	return math.Extents3D{Min: center.Sub(half), Max: center.Add(half)}
}

func TestCameraDefaultsLookDownNegativeZ(t *testing.T) {
	c := NewCamera(16.0 / 9.0)
	assert.True(t, c.Forward().Compare(math.NewVec3(0, 0, -1), 1e-5))
	assert.True(t, c.Right().Compare(math.NewVec3(1, 0, 0), 1e-5))
	assert.True(t, c.GetView().Compare(math.NewMat4Identity(), 1e-5))
}

func TestCameraMoveAndLookAt(t *testing.T) {
	c := NewCamera(1)
	c.MoveForward(2)
	assert.True(t, c.GetPosition().Compare(math.NewVec3(0, 0, -2), 1e-5))
	c.MoveUp(1)
	assert.True(t, c.GetPosition().Compare(math.NewVec3(0, 1, -2), 1e-5))

	c.SetPosition(math.NewVec3Zero())
	c.LookAt(math.NewVec3(5, 0, 0))
	assert.True(t, c.Forward().Compare(math.NewVec3(1, 0, 0), 1e-5))

	c.LookAt(math.NewVec3(0, 0, 5))
	assert.True(t, c.Forward().Compare(math.NewVec3(0, 0, 1), 1e-5))
}

func TestCameraPitchIsClamped(t *testing.T) {
	c := NewCamera(1)
	c.Pitch(10)
	assert.InDelta(t, pitchLimit, c.GetEulerRotation().X, 1e-6)
	c.SetEulerRotation(math.NewVec3(-10, 0, 0))
	assert.InDelta(t, -pitchLimit, c.GetEulerRotation().X, 1e-6)
}

func TestCameraVisible(t *testing.T) {
	c := NewCamera(1)
	c.SetPosition(math.NewVec3(0, 0, 10))

	assert.True(t, c.Visible(box(math.NewVec3Zero())))
	assert.False(t, c.Visible(box(math.NewVec3(0, 0, 20))), "behind the camera")
	assert.False(t, c.Visible(box(math.NewVec3(-100, 0, 0))), "left of the frustum")
	assert.False(t, c.Visible(box(math.NewVec3(0, 0, -2000))), "past the far plane")

	// Turning around brings the box behind into view.
	c.Yaw(math.DegToRad(180))
	assert.True(t, c.Visible(box(math.NewVec3(0, 0, 20))))
	assert.False(t, c.Visible(box(math.NewVec3Zero())))
}
