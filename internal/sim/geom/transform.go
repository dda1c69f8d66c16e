package geom

// Axis selects the coordinate a flip mirrors.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "?"
}

// Flip mirrors every position of shape across pivot along axis.
func Flip(shape []Vec3i, pivot Vec3i, axis Axis) []Vec3i {
	out := make([]Vec3i, len(shape))
	for i, p := range shape {
		switch axis {
		case AxisX:
			p.X = 2*pivot.X - p.X
		case AxisY:
			p.Y = 2*pivot.Y - p.Y
		case AxisZ:
			p.Z = 2*pivot.Z - p.Z
		}
		out[i] = p
	}
	return out
}

// Transform maps a source region onto a target region.
//
// Offsets are measured from CornerA as absolute component distances, so the
// target region always grows in the positive direction from Origin.
type Transform struct {
	CornerA  Vec3i
	Origin   Vec3i
	Rotation int // quarter turns clockwise about Y
	FlipX    bool
	FlipY    bool
	FlipZ    bool
}

func (t Transform) Translate(p Vec3i) Vec3i {
	return t.Origin.Add(p.Sub(t.CornerA).Abs())
}

// Project translates shape into the target region, then rotates and flips it
// (X, then Y, then Z) around the translated sourcePivot. The result is
// index-aligned with shape.
func Project(shape []Vec3i, t Transform, sourcePivot Vec3i) []Vec3i {
	if len(shape) == 0 {
		return nil
	}
	out := make([]Vec3i, len(shape))
	for i, p := range shape {
		out[i] = t.Translate(p)
	}
	pivot := t.Translate(sourcePivot)
	out = Rotate(out, pivot, t.Rotation)
	if t.FlipX {
		out = Flip(out, pivot, AxisX)
	}
	if t.FlipY {
		out = Flip(out, pivot, AxisY)
	}
	if t.FlipZ {
		out = Flip(out, pivot, AxisZ)
	}
	return out
}
