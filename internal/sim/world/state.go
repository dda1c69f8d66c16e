package world

import (
	"patternbuilder.ai/internal/protocol"
	"patternbuilder.ai/internal/sim/builder"
)

// BuildState renders every machine for observers.
func (w *World) BuildState() protocol.StateMsg {
	out := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		Machines:        make([]protocol.MachineState, 0, len(w.machines)),
	}
	for _, pos := range w.MachinePositions() {
		out.Machines = append(out.Machines, w.machineState(w.machines[pos]))
	}
	return out
}

func (w *World) machineState(m *builder.Machine) protocol.MachineState {
	s := m.State
	src, dst := m.Shapes()
	ms := protocol.MachineState{
		Pos:           m.Pos.Array(),
		Phase:         m.Last.Phase.String(),
		Outcome:       m.Last.Outcome.String(),
		Timer:         s.Timer,
		ShapeIndex:    s.ShapeIndex,
		ShapeLen:      len(src),
		Rotation:      s.Rotation,
		RotationName:  s.RotationName(),
		FlipX:         s.FlipX,
		FlipY:         s.FlipY,
		FlipZ:         s.FlipZ,
		RedstoneGated: s.RedstoneGated,
		Particles:     s.Particles.String(),
		Energy:        m.Energy.Stored,
	}
	if !s.Particles.PreviewVisible() {
		return ms
	}
	for _, pb := range builder.Preview(w, src, dst) {
		ms.Preview = append(ms.Preview, protocol.PreviewBlock{Pos: pb.Pos.Array(), Block: pb.Block})
	}
	if m.Last.Phase == builder.PhaseBuilding {
		ms.ParticlesAt = [][3]int{m.Last.Source.Array(), m.Last.Target.Array()}
	}
	return ms
}
