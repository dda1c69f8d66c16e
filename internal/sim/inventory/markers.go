package inventory

import "patternbuilder.ai/internal/sim/geom"

// MarkerDecoder resolves a marker stack to the position it records.
type MarkerDecoder interface {
	Decode(s Stack) (geom.Vec3i, bool)
}

// Markers decodes stacks of MarkerItem.
type Markers struct{}

func (Markers) Decode(s Stack) (geom.Vec3i, bool) {
	if s.Empty() || s.Item != MarkerItem || s.Marker == nil {
		return geom.Vec3i{}, false
	}
	return *s.Marker, true
}
