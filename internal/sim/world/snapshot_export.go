package world

import (
	"sort"

	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

// ExportSnapshot captures the world at the current tick. Must run on the
// world loop goroutine (or before Run starts).
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		TickRate:      w.cfg.TickRateHz,
		AliasesDigest: w.aliases.Digest(),
		Palette:       w.blocks.Palette(),
	}

	for _, k := range w.blocks.Keys() {
		ch, _ := w.blocks.Chunk(k)
		snap.Chunks = append(snap.Chunks, snapshot.ChunkV1{
			CX:     k.CX,
			CY:     k.CY,
			CZ:     k.CZ,
			Blocks: append([]uint16(nil), ch.Blocks...),
		})
	}

	powered := make([]geom.Vec3i, 0, len(w.powered))
	for p := range w.powered {
		powered = append(powered, p)
	}
	sort.Slice(powered, func(i, j int) bool { return powered[i].Less(powered[j]) })
	for _, p := range powered {
		snap.Powered = append(snap.Powered, p.Array())
	}

	for _, pos := range w.MachinePositions() {
		m := w.machines[pos]
		s := m.State
		mv := snapshot.MachineV1{
			Pos:            pos.Array(),
			Timer:          s.Timer,
			ShapeIndex:     s.ShapeIndex,
			Rotation:       s.Rotation,
			FlipX:          s.FlipX,
			FlipY:          s.FlipY,
			FlipZ:          s.FlipZ,
			RedstoneGated:  s.RedstoneGated,
			Particles:      int(s.Particles),
			EnergyStored:   m.Energy.Stored,
			EnergyCapacity: m.Energy.Capacity,
		}
		for i := 0; i < inventory.Size; i++ {
			st := m.Inventory.Stack(i)
			if st.Empty() {
				continue
			}
			sv := snapshot.SlotV1{Index: i, Item: st.Item, Count: st.Count}
			if st.Marker != nil {
				a := st.Marker.Array()
				sv.Marker = &a
			}
			mv.Slots = append(mv.Slots, sv)
		}
		snap.Machines = append(snap.Machines, mv)
	}
	return snap
}
