package geom

// NormalizeRotation converts a rotation value into a stable quarter-turn
// count in [0,3].
//
// It accepts either quarter-turns (0..3) or degrees (multiples of 90).
func NormalizeRotation(r int) int {
	// Treat large multiples of 90 as degrees.
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}

// RotationName is the display name of a normalized quarter-turn count.
func RotationName(rot int) string {
	switch NormalizeRotation(rot) {
	case 1:
		return "90"
	case 2:
		return "180"
	case 3:
		return "270"
	}
	return "None"
}

// RotateXZ rotates an (x,z) offset around the Y axis by rot*90 degrees
// clockwise. rot must be a normalized quarter-turn count in [0,3].
func RotateXZ(x, z, rot int) (rx, rz int) {
	switch rot & 3 {
	case 0:
		return x, z
	case 1:
		return z, -x
	case 2:
		return -x, -z
	default: // 3
		return -z, x
	}
}

// Rotate turns every position of shape around pivot about the vertical axis.
func Rotate(shape []Vec3i, pivot Vec3i, rot int) []Vec3i {
	rot = NormalizeRotation(rot)
	out := make([]Vec3i, len(shape))
	for i, p := range shape {
		off := p.Sub(pivot)
		rx, rz := RotateXZ(off.X, off.Z, rot)
		out[i] = Vec3i{X: pivot.X + rx, Y: p.Y, Z: pivot.Z + rz}
	}
	return out
}
