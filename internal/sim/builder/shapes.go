package builder

import (
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

// Anchors are the three reference positions read from the marker slots.
type Anchors struct {
	SourceA *geom.Vec3i
	SourceB *geom.Vec3i
	Target  *geom.Vec3i
}

func (a Anchors) Complete() bool {
	return a.SourceA != nil && a.SourceB != nil && a.Target != nil
}

// ReadAnchors decodes the marker slots of inv.
func ReadAnchors(inv Inventory, dec inventory.MarkerDecoder) Anchors {
	if dec == nil {
		dec = inventory.Markers{}
	}
	read := func(slot int) *geom.Vec3i {
		p, ok := dec.Decode(inv.Stack(slot))
		if !ok {
			return nil
		}
		return &p
	}
	return Anchors{
		SourceA: read(inventory.SlotSourceA),
		SourceB: read(inventory.SlotSourceB),
		Target:  read(inventory.SlotTarget),
	}
}

// Shapes computes the index-aligned source and target shapes. Both are empty
// unless every anchor is set.
func Shapes(a Anchors, s State) (src, dst []geom.Vec3i) {
	if !a.Complete() {
		return nil, nil
	}
	src = geom.Sample(a.SourceA, a.SourceB)
	t := geom.Transform{
		CornerA:  *a.SourceA,
		Origin:   *a.Target,
		Rotation: s.Rotation,
		FlipX:    s.FlipX,
		FlipY:    s.FlipY,
		FlipZ:    s.FlipZ,
	}
	dst = geom.Project(src, t, geom.Midpoint(*a.SourceA, *a.SourceB))
	return src, dst
}

// PreviewBlock is a projected block not yet built.
type PreviewBlock struct {
	Pos   geom.Vec3i
	Block string
}

// Preview lists, for every empty target whose source is occupied, the block
// that would be built there.
func Preview(w World, src, dst []geom.Vec3i) []PreviewBlock {
	var out []PreviewBlock
	for i := 0; i < len(dst) && i < len(src); i++ {
		block, ok := copyable(w, src[i])
		if !ok || !w.IsEmpty(dst[i]) {
			continue
		}
		out = append(out, PreviewBlock{Pos: dst[i], Block: block})
	}
	return out
}
