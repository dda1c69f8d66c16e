package builder

import "patternbuilder.ai/internal/sim/geom"

type mapWorld map[geom.Vec3i]string

func (w mapWorld) IsEmpty(p geom.Vec3i) bool          { return w[p] == "" }
func (w mapWorld) OccupantAt(p geom.Vec3i) string     { return w[p] }
func (w mapWorld) SetOccupant(p geom.Vec3i, b string) { w[p] = b }
