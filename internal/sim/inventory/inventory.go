package inventory

import (
	"errors"
	"fmt"

	"patternbuilder.ai/internal/sim/geom"
)

const (
	Size          = 21
	MaterialSlots = 18

	// Reserved slots holding location markers.
	SlotSourceA = 18
	SlotSourceB = 19
	SlotTarget  = 20

	MarkerItem = "patternbuilder:location_marker"
)

var (
	ErrSlotRange  = errors.New("slot out of range")
	ErrMarkerOnly = errors.New("slot accepts only location markers")
)

type Stack struct {
	Item   string      `json:"item"`
	Count  int         `json:"count"`
	Marker *geom.Vec3i `json:"marker,omitempty"`
}

func (s Stack) Empty() bool { return s.Item == "" || s.Count <= 0 }

// MarkerAt returns a location marker stack pointing at p.
func MarkerAt(p geom.Vec3i) Stack {
	return Stack{Item: MarkerItem, Count: 1, Marker: &p}
}

// IsMarkerSlot reports whether i is one of the reserved marker slots.
func IsMarkerSlot(i int) bool { return i >= MaterialSlots && i < Size }

type Inventory struct {
	slots [Size]Stack
}

func New() *Inventory { return &Inventory{} }

func (inv *Inventory) Stack(i int) Stack {
	if i < 0 || i >= Size {
		return Stack{}
	}
	s := inv.slots[i]
	if s.Marker != nil {
		p := *s.Marker
		s.Marker = &p
	}
	return s
}

// Set replaces slot i. Marker slots accept only marker stacks or an empty stack.
func (inv *Inventory) Set(i int, s Stack) error {
	if i < 0 || i >= Size {
		return fmt.Errorf("%w: %d", ErrSlotRange, i)
	}
	if s.Empty() {
		inv.slots[i] = Stack{}
		return nil
	}
	if IsMarkerSlot(i) && s.Item != MarkerItem {
		return fmt.Errorf("%w: slot %d", ErrMarkerOnly, i)
	}
	if s.Marker != nil {
		p := *s.Marker
		s.Marker = &p
	}
	inv.slots[i] = s
	return nil
}

// ConsumeOne removes a single unit from slot i, clearing it when it runs out.
func (inv *Inventory) ConsumeOne(i int) {
	if i < 0 || i >= Size || inv.slots[i].Empty() {
		return
	}
	inv.slots[i].Count--
	if inv.slots[i].Count <= 0 {
		inv.slots[i] = Stack{}
	}
}

func (inv *Inventory) MaterialSlots() int { return MaterialSlots }

// ItemAt returns the item id in slot i, or "" when the slot is empty.
func (inv *Inventory) ItemAt(i int) string {
	if i < 0 || i >= Size || inv.slots[i].Empty() {
		return ""
	}
	return inv.slots[i].Item
}

// Count totals item across the material slots.
func (inv *Inventory) Count(item string) int {
	n := 0
	for i := 0; i < MaterialSlots; i++ {
		if inv.slots[i].Item == item {
			n += inv.slots[i].Count
		}
	}
	return n
}

func (inv *Inventory) Stacks() []Stack {
	out := make([]Stack, Size)
	for i := range out {
		out[i] = inv.Stack(i)
	}
	return out
}
