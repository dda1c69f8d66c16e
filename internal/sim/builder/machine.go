package builder

import (
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

// Machine is a placed pattern builder.
type Machine struct {
	Pos       geom.Vec3i
	State     State
	Energy    Energy
	Inventory *inventory.Inventory

	// Last is the most recent tick result.
	Last Step
}

func NewMachine(pos geom.Vec3i, energyCapacity int) *Machine {
	return &Machine{
		Pos:       pos,
		State:     NewState(),
		Energy:    Energy{Capacity: energyCapacity},
		Inventory: inventory.New(),
	}
}

func (m *Machine) Tick(w World, table *aliases.Table, powered bool, cfg Config) Step {
	m.Last = Tick(&m.State, &m.Energy, Env{
		World:     w,
		Inventory: m.Inventory,
		Aliases:   table,
		Markers:   inventory.Markers{},
		Powered:   powered,
	}, cfg)
	return m.Last
}

func (m *Machine) Anchors() Anchors {
	return ReadAnchors(m.Inventory, inventory.Markers{})
}

func (m *Machine) Shapes() (src, dst []geom.Vec3i) {
	return Shapes(m.Anchors(), m.State)
}
