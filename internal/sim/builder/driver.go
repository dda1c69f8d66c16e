package builder

import (
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

// World is the block access a machine needs. The empty string is air.
type World interface {
	IsEmpty(p geom.Vec3i) bool
	OccupantAt(p geom.Vec3i) string
	SetOccupant(p geom.Vec3i, block string)
}

// Inventory is the slot access a machine needs.
type Inventory interface {
	inventory.Slots
	Stack(i int) inventory.Stack
	ConsumeOne(i int)
}

type Config struct {
	TimerFull int // ticks between successful placements
	TimerSkip int // ticks after skipping an unbuildable position
	FieldMax  int // cap for timer-like fields
	FuelCost  int // energy drawn per working tick
}

func DefaultConfig() Config {
	return Config{TimerFull: 20, TimerSkip: 1, FieldMax: 32}
}

// WithDefaults fills zero timer and field values from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.TimerFull <= 0 {
		c.TimerFull = d.TimerFull
	}
	if c.TimerSkip <= 0 {
		c.TimerSkip = d.TimerSkip
	}
	if c.FieldMax <= 0 {
		c.FieldMax = d.FieldMax
	}
	return c
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseGated
	PhaseBurning
	PhaseBuilding
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseGated:
		return "GATED"
	case PhaseBurning:
		return "BURNING"
	case PhaseBuilding:
		return "BUILDING"
	}
	return "UNKNOWN"
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePlaced
	OutcomeSkipped // target occupied or source empty
	OutcomeNoSlot  // nothing in the inventory places the source block
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "NONE"
	case OutcomePlaced:
		return "PLACED"
	case OutcomeSkipped:
		return "SKIPPED"
	case OutcomeNoSlot:
		return "NO_SLOT"
	}
	return "UNKNOWN"
}

// Step describes what a single tick did.
type Step struct {
	Phase   Phase
	Outcome Outcome

	// Set only in PhaseBuilding.
	Index  int
	Source geom.Vec3i
	Target geom.Vec3i
	Block  string
	Slot   int
}

type Env struct {
	World     World
	Inventory Inventory
	Aliases   *aliases.Table
	Markers   inventory.MarkerDecoder
	Powered   bool
}

// Tick advances a machine by one simulation tick. Every failure is a silent
// skip; the machine retries on a later tick.
func Tick(s *State, energy *Energy, env Env, cfg Config) Step {
	cfg = cfg.WithDefaults()
	if s.RedstoneGated && !env.Powered {
		return Step{Phase: PhaseGated}
	}
	if env.World == nil || env.Inventory == nil {
		return Step{Phase: PhaseIdle}
	}
	anchors := ReadAnchors(env.Inventory, env.Markers)
	// Anchors are checked before burning so an unconfigured machine keeps its energy.
	if !anchors.Complete() {
		return Step{Phase: PhaseIdle}
	}
	if !burn(energy, cfg.FuelCost) {
		return Step{Phase: PhaseIdle}
	}

	s.Timer--
	if s.Timer > 0 {
		return Step{Phase: PhaseBurning}
	}
	s.Timer = 0

	src, dst := Shapes(anchors, *s)
	if len(src) == 0 {
		return Step{Phase: PhaseIdle}
	}
	if s.ShapeIndex < 0 || s.ShapeIndex >= len(src) {
		s.ShapeIndex = 0
	}
	st := Step{
		Phase:  PhaseBuilding,
		Index:  s.ShapeIndex,
		Source: src[s.ShapeIndex],
		Target: dst[s.ShapeIndex],
		Slot:   -1,
	}

	w := env.World
	block, ok := copyable(w, st.Source)
	if !ok || !w.IsEmpty(st.Target) {
		s.Timer = cfg.TimerSkip
		s.ShapeIndex++
		st.Outcome = OutcomeSkipped
		return st
	}

	st.Block = block
	slot, ok := inventory.FindSlot(st.Block, env.Inventory, env.Aliases)
	if !ok {
		// Timer stays at zero so the next position is tried on the next tick.
		s.ShapeIndex++
		st.Outcome = OutcomeNoSlot
		return st
	}
	s.Timer = cfg.TimerFull
	w.SetOccupant(st.Target, st.Block)
	env.Inventory.ConsumeOne(slot)
	s.ShapeIndex++
	st.Slot = slot
	st.Outcome = OutcomePlaced
	return st
}

func burn(e *Energy, cost int) bool {
	if e == nil {
		return cost <= 0
	}
	return e.Burn(cost)
}

// copyable returns the block at p when there is one to copy. Non-empty
// cells without a block name, such as other machines, are not copyable.
func copyable(w World, p geom.Vec3i) (string, bool) {
	if w.IsEmpty(p) {
		return "", false
	}
	b := w.OccupantAt(p)
	return b, b != ""
}
