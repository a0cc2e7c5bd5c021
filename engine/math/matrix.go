package math

import "github.com/chewxy/math32"

/**
 * @brief Creates and returns an identity matrix.
 */
func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

/**
 * @brief Returns mt * other. With row vectors, v * (mt * other) applies mt first.
 */
func (mt Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

func NewMat4Translation(position Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[12] = position.X
	out.Data[13] = position.Y
	out.Data[14] = position.Z
	return out
}

func NewMat4Scale(scale Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = scale.X
	out.Data[5] = scale.Y
	out.Data[10] = scale.Z
	return out
}

/**
 * @brief Creates and returns a perspective matrix. Typically used to render 3d scenes.
 *
 * @param fovRadians The field of view in radians.
 * @param aspectRatio The aspect ratio.
 * @param nearClip The near clipping plane distance.
 * @param farClip The far clipping plane distance.
 */
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := math32.Tan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = 1.0 / halfTanFov
	out.Data[10] = -((farClip + nearClip) / (farClip - nearClip))
	out.Data[11] = -1.0
	out.Data[14] = -((2.0 * farClip * nearClip) / (farClip - nearClip))
	return out
}

func (mt Mat4) Transposed() Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out.Data[col*4+row] = mt.Data[row*4+col]
		}
	}
	return out
}

/**
 * @brief Returns the inverse of mt using Gauss-Jordan elimination with partial
 * pivoting. A singular matrix yields the identity and false.
 */
func (mt Mat4) Inverse() (Mat4, bool) {
	a := mt.Data
	inv := NewMat4Identity().Data

	for col := 0; col < 4; col++ {
		pivot := col
		best := math32.Abs(a[col*4+col])
		for row := col + 1; row < 4; row++ {
			if v := math32.Abs(a[row*4+col]); v > best {
				best = v
				pivot = row
			}
		}
		if best < K_FLOAT_EPSILON {
			return NewMat4Identity(), false
		}
		if pivot != col {
			for i := 0; i < 4; i++ {
				a[col*4+i], a[pivot*4+i] = a[pivot*4+i], a[col*4+i]
				inv[col*4+i], inv[pivot*4+i] = inv[pivot*4+i], inv[col*4+i]
			}
		}
		d := 1.0 / a[col*4+col]
		for i := 0; i < 4; i++ {
			a[col*4+i] *= d
			inv[col*4+i] *= d
		}
		for row := 0; row < 4; row++ {
			if row == col {
				continue
			}
			f := a[row*4+col]
			if f == 0 {
				continue
			}
			for i := 0; i < 4; i++ {
				a[row*4+i] -= f * a[col*4+i]
				inv[row*4+i] -= f * inv[col*4+i]
			}
		}
	}
	return Mat4{Data: inv}, true
}

// NormalMatrix is the inverse transpose of the upper 3x3, used to carry normals
// through non-uniform scale.
func (mt Mat4) NormalMatrix() Mat4 {
	m := mt
	m.Data[12], m.Data[13], m.Data[14] = 0, 0, 0
	inv, ok := m.Inverse()
	if !ok {
		return m
	}
	return inv.Transposed()
}

func (mt Mat4) Translation() Vec3 {
	return Vec3{mt.Data[12], mt.Data[13], mt.Data[14]}
}

func (mt Mat4) Compare(other Mat4, tolerance float32) bool {
	for i := range mt.Data {
		if math32.Abs(mt.Data[i]-other.Data[i]) > tolerance {
			return false
		}
	}
	return true
}
