package geom

import "fmt"

// Vec3i is a world-grid position. It is comparable and used directly as a map key.
type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func V(x, y, z int) Vec3i { return Vec3i{X: x, Y: y, Z: z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) Array() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

// Abs returns the component-wise absolute value.
func (v Vec3i) Abs() Vec3i { return Vec3i{X: abs(v.X), Y: abs(v.Y), Z: abs(v.Z)} }

// Less orders positions by x, then y, then z.
func (v Vec3i) Less(o Vec3i) bool {
	if v.X != o.X {
		return v.X < o.X
	}
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	return v.Z < o.Z
}

func (v Vec3i) String() string { return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z) }

// Midpoint is the integer average of two positions, truncated toward zero.
func Midpoint(a, b Vec3i) Vec3i {
	return Vec3i{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
