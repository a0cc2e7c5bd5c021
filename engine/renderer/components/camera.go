package components

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/math"
)

/**
 * @brief A perspective camera. Draws of the world pass are transformed by its
 * view-projection matrix and culled against its frustum.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll).
	 * NOTE: Do not set this directly, use SetEulerRotation() instead
	 * so the view matrix is recalculated when needed.
	 */
	EulerRotation math.Vec3

	/** @brief Vertical field of view in radians. */
	FieldOfView float32
	AspectRatio float32
	Near        float32
	Far         float32

	/** @brief Set when the view or projection changed since the last rebuild. */
	IsDirty bool

	rotation       math.Mat4
	viewMatrix     math.Mat4
	viewProjection math.Mat4
}

// Pitch is kept short of straight up or down.
const pitchLimit = float32(1.55334306) // 89 degrees

func NewCamera(aspectRatio float32) *Camera {
	camera := &Camera{AspectRatio: aspectRatio}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = math.NewVec3Zero()
	c.Position = math.NewVec3Zero()
	c.FieldOfView = math.DegToRad(45)
	c.Near = 0.1
	c.Far = 1000
	if c.AspectRatio <= 0 {
		c.AspectRatio = 1
	}
	c.IsDirty = true
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) GetEulerRotation() math.Vec3 {
	return c.EulerRotation
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	rotation.X = math.Clamp(rotation.X, -pitchLimit, pitchLimit)
	c.EulerRotation = rotation
	c.IsDirty = true
}

func (c *Camera) SetPerspective(fovRadians, aspectRatio, near, far float32) {
	c.FieldOfView, c.AspectRatio, c.Near, c.Far = fovRadians, aspectRatio, near, far
	c.IsDirty = true
}

func (c *Camera) rebuild() {
	if !c.IsDirty {
		return
	}
	pitch := math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), c.EulerRotation.X, false)
	yaw := math.NewQuatFromAxisAngle(math.NewVec3Up(), c.EulerRotation.Y, false)
	roll := math.NewQuatFromAxisAngle(math.NewVec3(0, 0, 1), c.EulerRotation.Z, false)
	// Row vectors: roll, then pitch, then yaw.
	c.rotation = roll.ToMat4().Mul(pitch.ToMat4()).Mul(yaw.ToMat4())

	world := c.rotation.Mul(math.NewMat4Translation(c.Position))
	view, ok := world.Inverse()
	if !ok {
		view = math.NewMat4Identity()
	}
	c.viewMatrix = view
	projection := math.NewMat4Perspective(c.FieldOfView, c.AspectRatio, c.Near, c.Far)
	c.viewProjection = view.Mul(projection)
	c.IsDirty = false
}

func (c *Camera) GetView() math.Mat4 {
	c.rebuild()
	return c.viewMatrix
}

// ViewProjection maps world space to clip space.
func (c *Camera) ViewProjection() math.Mat4 {
	c.rebuild()
	return c.viewProjection
}

func (c *Camera) Forward() math.Vec3 {
	c.rebuild()
	return math.NewVec3Forward().TransformDirection(c.rotation)
}

func (c *Camera) Backward() math.Vec3 {
	return c.Forward().MulScalar(-1)
}

func (c *Camera) Right() math.Vec3 {
	c.rebuild()
	return math.NewVec3(1, 0, 0).TransformDirection(c.rotation)
}

func (c *Camera) Left() math.Vec3 {
	return c.Right().MulScalar(-1)
}

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.MulScalar(amount))
	c.IsDirty = true
}

func (c *Camera) MoveForward(amount float32)  { c.move(c.Forward(), amount) }
func (c *Camera) MoveBackward(amount float32) { c.move(c.Backward(), amount) }
func (c *Camera) MoveLeft(amount float32)     { c.move(c.Left(), amount) }
func (c *Camera) MoveRight(amount float32)    { c.move(c.Right(), amount) }
func (c *Camera) MoveUp(amount float32)       { c.move(math.NewVec3Up(), amount) }
func (c *Camera) MoveDown(amount float32)     { c.move(math.NewVec3Up(), -amount) }

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation.Y += amount
	c.IsDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X+amount, -pitchLimit, pitchLimit)
	c.IsDirty = true
}

// LookAt turns the camera towards target. Roll is reset.
func (c *Camera) LookAt(target math.Vec3) {
	dir := target.Sub(c.Position)
	if dir.LengthSquared() == 0 {
		return
	}
	dir = dir.Normalized()
	horizontal := math.NewVec3(dir.X, 0, dir.Z).Length()
	c.SetEulerRotation(math.NewVec3(math32.Atan2(dir.Y, horizontal), math32.Atan2(-dir.X, -dir.Z), 0))
}

/**
 * @brief Reports whether any part of a world-space box may be on screen. A
 * box is rejected only when all eight corners lie outside the same clip plane.
 */
func (c *Camera) Visible(bounds math.Extents3D) bool {
	m := c.ViewProjection()
	var outside [6]int
	for i := 0; i < 8; i++ {
		p := bounds.Min
		if i&1 != 0 {
			p.X = bounds.Max.X
		}
		if i&2 != 0 {
			p.Y = bounds.Max.Y
		}
		if i&4 != 0 {
			p.Z = bounds.Max.Z
		}
		x := p.X*m.Data[0] + p.Y*m.Data[4] + p.Z*m.Data[8] + m.Data[12]
		y := p.X*m.Data[1] + p.Y*m.Data[5] + p.Z*m.Data[9] + m.Data[13]
		z := p.X*m.Data[2] + p.Y*m.Data[6] + p.Z*m.Data[10] + m.Data[14]
		w := p.X*m.Data[3] + p.Y*m.Data[7] + p.Z*m.Data[11] + m.Data[15]
		for plane, out := range [6]bool{x < -w, x > w, y < -w, y > w, z < -w, z > w} {
			if out {
				outside[plane]++
			}
		}
	}
	for _, n := range outside {
		if n == 8 {
			return false
		}
	}
	return true
}
