package world

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
)

func TestSnapshotExportImport_RoundTripDigest(t *testing.T) {
	w1 := newTestWorld(t)
	w1.SetBlock(geom.V(0, 0, 0), "minecraft:stone")
	w1.SetBlock(geom.V(1, 0, 0), "minecraft:stone")
	w1.SetBlock(geom.V(-20, 3, 40), "minecraft:oak_planks")
	w1.SetPowered(geom.V(2, 2, 2), true)
	m := rigMachine(t, w1, geom.V(-5, 0, 0), geom.V(0, 0, 0), geom.V(1, 0, 0), geom.V(10, 0, 0), 5)
	m.State.Particles = builder.ParticlesPhantom
	m.Energy.Receive(300)

	for i := 0; i < 3; i++ {
		w1.StepOnce(nil)
	}
	d1 := w1.StateDigest()
	snap := w1.ExportSnapshot()
	if snap.Header.Tick != 3 {
		t.Fatalf("snapshot tick = %d, want 3", snap.Header.Tick)
	}

	w2 := newTestWorld(t)
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := w2.CurrentTick(); got != 3 {
		t.Fatalf("imported tick = %d, want 3", got)
	}
	if d2 := w2.StateDigest(); d2 != d1 {
		t.Fatalf("digest mismatch: %s != %s", d2, d1)
	}
	if diff := cmp.Diff(snap, w2.ExportSnapshot()); diff != "" {
		t.Fatalf("re-export differs (-want +got):\n%s", diff)
	}

	// Both worlds keep building identically.
	for i := 0; i < 5; i++ {
		_, a := w1.StepOnce(nil)
		_, b := w2.StepOnce(nil)
		if a != b {
			t.Fatalf("diverged at step %d", i)
		}
	}
}

func TestImportSnapshot_Rejects(t *testing.T) {
	w := newTestWorld(t)
	good := w.ExportSnapshot()

	bad := good
	bad.Header.Version = 2
	if err := w.ImportSnapshot(bad); !errors.Is(err, snapshot.ErrVersion) {
		t.Fatalf("expected ErrVersion, got %v", err)
	}

	bad = good
	bad.Header.WorldID = "other"
	if err := w.ImportSnapshot(bad); err == nil {
		t.Fatalf("expected world id mismatch")
	}

	bad = good
	bad.Chunks = []snapshot.ChunkV1{{Blocks: make([]uint16, 16*16*16)}}
	bad.Chunks[0].Blocks[0] = 7
	if err := w.ImportSnapshot(bad); err == nil {
		t.Fatalf("expected palette range error")
	}
}

func TestBuildState_PreviewFollowsParticles(t *testing.T) {
	w := newTestWorld(t)
	w.SetBlock(geom.V(0, 0, 0), "minecraft:stone")
	m := rigMachine(t, w, geom.V(-5, 0, 0), geom.V(0, 0, 0), geom.V(1, 0, 0), geom.V(10, 0, 0), 1)

	st := w.BuildState()
	if len(st.Machines) != 1 || st.Machines[0].Preview != nil {
		t.Fatalf("preview sent with particles off: %+v", st.Machines)
	}
	if st.Machines[0].ShapeLen != 2 || st.Machines[0].RotationName != "None" {
		t.Fatalf("machine state = %+v", st.Machines[0])
	}

	m.State.Particles = builder.ParticlesOutline
	w.StepOnce(nil)
	ms := w.BuildState().Machines[0]
	// (0,0,0) was built; (1,0,0) has no source block.
	if len(ms.Preview) != 0 {
		t.Fatalf("preview = %+v, want empty", ms.Preview)
	}
	want := [][3]int{{0, 0, 0}, {10, 0, 0}}
	if diff := cmp.Diff(want, ms.ParticlesAt); diff != "" {
		t.Fatalf("particles_at (-want +got):\n%s", diff)
	}

	w.SetBlock(geom.V(1, 0, 0), "minecraft:glass")
	ms = w.BuildState().Machines[0]
	if len(ms.Preview) != 1 || ms.Preview[0].Pos != [3]int{11, 0, 0} || ms.Preview[0].Block != "minecraft:glass" {
		t.Fatalf("preview = %+v", ms.Preview)
	}

	for _, p := range []builder.Particles{builder.ParticlesPhantom, builder.ParticlesSolid} {
		m.State.Particles = p
		ms = w.BuildState().Machines[0]
		if len(ms.Preview) != 1 || ms.Preview[0].Pos != [3]int{11, 0, 0} {
			t.Fatalf("%s: preview = %+v", p, ms.Preview)
		}
	}
	m.State.Particles = builder.ParticlesOff
	if ms = w.BuildState().Machines[0]; ms.Preview != nil {
		t.Fatalf("preview sent after switching off: %+v", ms.Preview)
	}
}

func TestImportSnapshot_NormalizesMachineState(t *testing.T) {
	w := newTestWorld(t)
	snap := w.ExportSnapshot()
	snap.Machines = []snapshot.MachineV1{
		{Pos: [3]int{0, 0, 0}, Timer: 1, Rotation: 7, Particles: 7, EnergyStored: 5000, EnergyCapacity: 1000},
		{Pos: [3]int{1, 0, 0}, Timer: 1, Rotation: -1, Particles: -2, EnergyStored: -3, EnergyCapacity: 1000},
	}
	if err := w.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}

	m, ok := w.Machine(geom.V(0, 0, 0))
	if !ok {
		t.Fatalf("machine missing")
	}
	if m.State.Rotation != 3 || m.State.Particles != builder.ParticlesSolid || m.Energy.Stored != 1000 {
		t.Fatalf("state = %+v energy = %+v", m.State, m.Energy)
	}
	m, _ = w.Machine(geom.V(1, 0, 0))
	if m.State.Rotation != 3 || m.State.Particles != builder.ParticlesPhantom || m.Energy.Stored != 0 {
		t.Fatalf("state = %+v energy = %+v", m.State, m.Energy)
	}
	if got := m.State.RotationName(); got != "270" {
		t.Fatalf("rotation name = %q", got)
	}
}
