package inventory

import (
	"strings"

	"patternbuilder.ai/internal/sim/aliases"
)

// Slots is the read side of an inventory the matcher scans.
type Slots interface {
	MaterialSlots() int
	ItemAt(i int) string
}

// FindSlot returns the lowest material slot holding occupant. Only when no
// slot matches directly is occupant resolved through table and matched again.
func FindSlot(occupant string, slots Slots, table *aliases.Table) (int, bool) {
	if occupant == "" || slots == nil {
		return -1, false
	}
	n := slots.MaterialSlots()
	for i := 0; i < n; i++ {
		if item := slots.ItemAt(i); item != "" && item == occupant {
			return i, true
		}
	}
	canonical, ok := table.Resolve(occupant)
	if !ok {
		return -1, false
	}
	for i := 0; i < n; i++ {
		if item := slots.ItemAt(i); item != "" && strings.EqualFold(item, canonical) {
			return i, true
		}
	}
	return -1, false
}
