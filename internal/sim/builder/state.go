package builder

import (
	"errors"
	"fmt"

	"patternbuilder.ai/internal/sim/geom"
)

// Particles selects how a machine displays its work.
type Particles int

const (
	ParticlesOff Particles = iota
	ParticlesOutline
	ParticlesPhantom
	ParticlesSolid

	particleModes = 4
)

func (p Particles) String() string {
	switch p {
	case ParticlesOff:
		return "off"
	case ParticlesOutline:
		return "outline"
	case ParticlesPhantom:
		return "phantom"
	case ParticlesSolid:
		return "solid"
	}
	return fmt.Sprintf("particles(%d)", int(p))
}

// PreviewVisible reports whether pending blocks are shown. Every mode but
// off shows them; the modes differ only in how they are drawn.
func (p Particles) PreviewVisible() bool { return p != ParticlesOff }

// ParseParticles accepts a mode name.
func ParseParticles(s string) (Particles, bool) {
	for p := ParticlesOff; p < particleModes; p++ {
		if p.String() == s {
			return p, true
		}
	}
	return ParticlesOff, false
}

// Field names a settable machine field.
type Field string

const (
	FieldTimer     Field = "timer"
	FieldRedstone  Field = "redstone"
	FieldParticles Field = "particles"
	FieldRotation  Field = "rotation"
	FieldFlipX     Field = "flip_x"
	FieldFlipY     Field = "flip_y"
	FieldFlipZ     Field = "flip_z"
)

// Fields lists every settable field in display order.
var Fields = []Field{FieldTimer, FieldRedstone, FieldParticles, FieldRotation, FieldFlipX, FieldFlipY, FieldFlipZ}

var ErrUnknownField = errors.New("unknown field")

// State is the persisted per-machine state.
type State struct {
	Timer         int
	ShapeIndex    int
	Rotation      int // quarter turns, 0..3
	FlipX         bool
	FlipY         bool
	FlipZ         bool
	RedstoneGated bool
	Particles     Particles
}

// NewState returns the state of a freshly placed machine.
func NewState() State { return State{Timer: 1} }

// Set applies v to f. Timer, redstone and particle values are capped at
// fieldMax first; the enum-like fields then cycle through their range.
func (s *State) Set(f Field, v, fieldMax int) error {
	switch f {
	case FieldTimer, FieldRedstone, FieldParticles:
		if fieldMax > 0 && v > fieldMax {
			v = fieldMax
		}
	}
	switch f {
	case FieldTimer:
		s.Timer = v
	case FieldRedstone:
		s.RedstoneGated = cycle(v, 2) == 1
	case FieldParticles:
		s.Particles = Particles(cycle(v, particleModes))
	case FieldRotation:
		s.Rotation = cycle(v, 4)
	case FieldFlipX:
		s.FlipX = cycle(v, 2) == 1
	case FieldFlipY:
		s.FlipY = cycle(v, 2) == 1
	case FieldFlipZ:
		s.FlipZ = cycle(v, 2) == 1
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

func (s State) Get(f Field) (int, error) {
	switch f {
	case FieldTimer:
		return s.Timer, nil
	case FieldRedstone:
		return b2i(s.RedstoneGated), nil
	case FieldParticles:
		return int(s.Particles), nil
	case FieldRotation:
		return s.Rotation, nil
	case FieldFlipX:
		return b2i(s.FlipX), nil
	case FieldFlipY:
		return b2i(s.FlipY), nil
	case FieldFlipZ:
		return b2i(s.FlipZ), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, f)
}

func (s State) RotationName() string { return geom.RotationName(s.Rotation) }

func cycle(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
