package inventory

import (
	"errors"
	"testing"

	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/geom"
)

func TestFindSlot_DirectMatchLowestIndex(t *testing.T) {
	inv := New()
	_ = inv.Set(3, Stack{Item: "minecraft:stone", Count: 1})
	_ = inv.Set(7, Stack{Item: "minecraft:stone", Count: 9})
	slot, ok := FindSlot("minecraft:stone", inv, aliases.Defaults())
	if !ok || slot != 3 {
		t.Fatalf("slot=%d ok=%v want 3", slot, ok)
	}
	for i := 0; i < 5; i++ {
		if again, _ := FindSlot("minecraft:stone", inv, aliases.Defaults()); again != slot {
			t.Fatalf("non-deterministic slot %d vs %d", again, slot)
		}
	}
}

func TestFindSlot_AliasFallback(t *testing.T) {
	inv := New()
	_ = inv.Set(0, Stack{Item: "minecraft:redstone", Count: 4})
	slot, ok := FindSlot("minecraft:redstone_wire", inv, aliases.Defaults())
	if !ok || slot != 0 {
		t.Fatalf("slot=%d ok=%v want 0", slot, ok)
	}
}

func TestFindSlot_DirectBeatsEarlierAlias(t *testing.T) {
	tbl := aliases.New(map[string]string{"mod:lit_lamp": "mod:lamp"})
	inv := New()
	_ = inv.Set(0, Stack{Item: "mod:lamp", Count: 1})
	_ = inv.Set(5, Stack{Item: "mod:lit_lamp", Count: 1})
	slot, ok := FindSlot("mod:lit_lamp", inv, tbl)
	if !ok || slot != 5 {
		t.Fatalf("slot=%d ok=%v want direct match 5", slot, ok)
	}
}

func TestFindSlot_NotFoundAndMarkerSlotsIgnored(t *testing.T) {
	inv := New()
	if err := inv.Set(SlotSourceA, MarkerAt(geom.V(0, 0, 0))); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	if _, ok := FindSlot(MarkerItem, inv, nil); ok {
		t.Fatalf("marker slots must not be scanned")
	}
	if _, ok := FindSlot("minecraft:tripwire", inv, aliases.Defaults()); ok {
		t.Fatalf("expected no match in empty material slots")
	}
	if _, ok := FindSlot("", inv, nil); ok {
		t.Fatalf("empty occupant must not match")
	}
}

func TestSet_MarkerSlotValidation(t *testing.T) {
	inv := New()
	err := inv.Set(SlotTarget, Stack{Item: "minecraft:stone", Count: 1})
	if !errors.Is(err, ErrMarkerOnly) {
		t.Fatalf("expected ErrMarkerOnly, got %v", err)
	}
	if err := inv.Set(Size, Stack{Item: "minecraft:stone", Count: 1}); !errors.Is(err, ErrSlotRange) {
		t.Fatalf("expected ErrSlotRange, got %v", err)
	}
	if err := inv.Set(SlotTarget, Stack{}); err != nil {
		t.Fatalf("clearing a marker slot: %v", err)
	}
}

func TestConsumeOne(t *testing.T) {
	inv := New()
	_ = inv.Set(2, Stack{Item: "minecraft:stone", Count: 2})
	inv.ConsumeOne(2)
	if inv.Count("minecraft:stone") != 1 {
		t.Fatalf("count=%d want 1", inv.Count("minecraft:stone"))
	}
	inv.ConsumeOne(2)
	if inv.ItemAt(2) != "" || !inv.Stack(2).Empty() {
		t.Fatalf("slot should be cleared: %+v", inv.Stack(2))
	}
	inv.ConsumeOne(2)
	inv.ConsumeOne(-1)
}

func TestMarkers_Decode(t *testing.T) {
	p := geom.V(4, 5, 6)
	got, ok := Markers{}.Decode(MarkerAt(p))
	if !ok || got != p {
		t.Fatalf("decode=%v,%v", got, ok)
	}
	if _, ok := (Markers{}).Decode(Stack{Item: MarkerItem, Count: 1}); ok {
		t.Fatalf("marker without position must not decode")
	}
	inv := New()
	_ = inv.Set(SlotTarget, MarkerAt(p))
	s := inv.Stack(SlotTarget)
	s.Marker.X = 99
	if again, _ := (Markers{}).Decode(inv.Stack(SlotTarget)); again != p {
		t.Fatalf("Stack must return a copy, got %v", again)
	}
}
