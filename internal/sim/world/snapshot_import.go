package world

import (
	"fmt"

	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

// ImportSnapshot replaces the world state with snap. It must be called
// before Run starts.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("%w: %d", snapshot.ErrVersion, snap.Header.Version)
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world %q does not match %q", snap.Header.WorldID, w.cfg.ID)
	}

	chunks := make(map[ChunkKey][]uint16, len(snap.Chunks))
	for _, c := range snap.Chunks {
		k := ChunkKey{CX: c.CX, CY: c.CY, CZ: c.CZ}
		if _, dup := chunks[k]; dup {
			return fmt.Errorf("duplicate chunk %v", k)
		}
		chunks[k] = c.Blocks
	}
	blocks := NewBlockStore()
	if err := blocks.load(snap.Palette, chunks); err != nil {
		return fmt.Errorf("import blocks: %w", err)
	}

	powered := make(map[geom.Vec3i]bool, len(snap.Powered))
	for _, p := range snap.Powered {
		powered[geom.FromArray(p)] = true
	}

	machines := make(map[geom.Vec3i]*builder.Machine, len(snap.Machines))
	for _, mv := range snap.Machines {
		pos := geom.FromArray(mv.Pos)
		if _, dup := machines[pos]; dup {
			return fmt.Errorf("duplicate machine at %s", pos)
		}
		m := builder.NewMachine(pos, mv.EnergyCapacity)
		m.State = builder.State{
			Timer:         mv.Timer,
			ShapeIndex:    mv.ShapeIndex,
			FlipX:         mv.FlipX,
			FlipY:         mv.FlipY,
			FlipZ:         mv.FlipZ,
			RedstoneGated: mv.RedstoneGated,
		}
		// Out of range enums wrap the same way a set_field would.
		_ = m.State.Set(builder.FieldRotation, mv.Rotation, 0)
		_ = m.State.Set(builder.FieldParticles, mv.Particles, 0)
		m.Energy.Stored = mv.EnergyStored
		m.Energy.Clamp()
		for _, sv := range mv.Slots {
			st := inventory.Stack{Item: sv.Item, Count: sv.Count}
			if sv.Marker != nil {
				p := geom.FromArray(*sv.Marker)
				st.Marker = &p
			}
			if err := m.Inventory.Set(sv.Index, st); err != nil {
				return fmt.Errorf("machine %s: %w", pos, err)
			}
		}
		machines[pos] = m
	}

	w.blocks = blocks
	w.powered = powered
	w.machines = machines
	w.tick.Store(snap.Header.Tick)
	return nil
}
