package geom

// Box returns every position in the axis-aligned box spanning a and b inclusive.
// Scan order is x outermost, then y, then z, each increasing.
func Box(a, b Vec3i) []Vec3i {
	lo := Vec3i{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
	hi := Vec3i{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
	n := (hi.X - lo.X + 1) * (hi.Y - lo.Y + 1) * (hi.Z - lo.Z + 1)
	out := make([]Vec3i, 0, n)
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				out = append(out, Vec3i{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

// Sample is Box for optional corners: a missing corner yields an empty shape.
func Sample(a, b *Vec3i) []Vec3i {
	if a == nil || b == nil {
		return nil
	}
	return Box(*a, *b)
}
