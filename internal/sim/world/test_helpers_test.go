package world

import (
	"testing"

	"patternbuilder.ai/internal/protocol"
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

type memAudit struct{ entries []AuditEntry }

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memTicks struct{ entries []TickLogEntry }

func (m *memTicks) WriteTick(e TickLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(WorldConfig{
		ID:              "test",
		TickRateHz:      20,
		StateEveryTicks: 1,
		EnergyCapacity:  1000,
		Builder:         builder.Config{TimerFull: 2, TimerSkip: 1, FieldMax: 32},
	}, aliases.Defaults())
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

// rigMachine places a machine at m copying the box a..b to origin, with
// count stone in slot 0.
func rigMachine(t *testing.T, w *World, m, a, b, origin geom.Vec3i, count int) *builder.Machine {
	t.Helper()
	mach, err := w.PlaceMachine(m)
	if err != nil {
		t.Fatalf("place machine: %v", err)
	}
	must := func(i int, s inventory.Stack) {
		if err := mach.Inventory.Set(i, s); err != nil {
			t.Fatalf("set slot %d: %v", i, err)
		}
	}
	must(inventory.SlotSourceA, inventory.MarkerAt(a))
	must(inventory.SlotSourceB, inventory.MarkerAt(b))
	must(inventory.SlotTarget, inventory.MarkerAt(origin))
	if count > 0 {
		must(0, inventory.Stack{Item: "minecraft:stone", Count: count})
	}
	return mach
}

func req(op string, mutate func(*protocol.ReqMsg)) ReqEnvelope {
	r := protocol.ReqMsg{Type: protocol.TypeReq, ProtocolVersion: protocol.Version, ID: "R1", Op: op}
	if mutate != nil {
		mutate(&r)
	}
	return ReqEnvelope{SessionID: "S000001", Req: r}
}
