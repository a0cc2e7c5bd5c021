package math

// NewExtentsEmpty returns inverted extents that any Encapsulate call will replace.
func NewExtentsEmpty() Extents3D {
	return Extents3D{
		Min: Vec3{K_INFINITY, K_INFINITY, K_INFINITY},
		Max: Vec3{-K_INFINITY, -K_INFINITY, -K_INFINITY},
	}
}

func (e Extents3D) IsEmpty() bool {
	return e.Min.X > e.Max.X || e.Min.Y > e.Max.Y || e.Min.Z > e.Max.Z
}

func (e Extents3D) Encapsulate(p Vec3) Extents3D {
	return Extents3D{Min: e.Min.Min(p), Max: e.Max.Max(p)}
}

func (e Extents3D) Union(other Extents3D) Extents3D {
	if other.IsEmpty() {
		return e
	}
	if e.IsEmpty() {
		return other
	}
	return Extents3D{Min: e.Min.Min(other.Min), Max: e.Max.Max(other.Max)}
}

func (e Extents3D) Center() Vec3 {
	return e.Min.Add(e.Max).MulScalar(0.5)
}

func (e Extents3D) Size() Vec3 {
	return e.Max.Sub(e.Min)
}

// Transform returns the axis-aligned box enclosing the eight transformed corners.
func (e Extents3D) Transform(m Mat4) Extents3D {
	if e.IsEmpty() {
		return e
	}
	out := NewExtentsEmpty()
	for i := 0; i < 8; i++ {
		c := e.Min
		if i&1 != 0 {
			c.X = e.Max.X
		}
		if i&2 != 0 {
			c.Y = e.Max.Y
		}
		if i&4 != 0 {
			c.Z = e.Max.Z
		}
		out = out.Encapsulate(c.Transform(m))
	}
	return out
}

func ExtentsFromPoints(points []Vec3) Extents3D {
	out := NewExtentsEmpty()
	for _, p := range points {
		out = out.Encapsulate(p)
	}
	return out
}
