// Package scenario seeds a fresh world from a yaml description.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
	"patternbuilder.ai/internal/sim/world"
)

type Scenario struct {
	Blocks   []Block   `yaml:"blocks"`
	Fills    []Fill    `yaml:"fills"`
	Powered  [][3]int  `yaml:"powered"`
	Machines []Machine `yaml:"machines"`
}

type Block struct {
	Pos   [3]int `yaml:"pos"`
	Block string `yaml:"block"`
}

// Fill sets every position in the inclusive box From..To.
type Fill struct {
	From  [3]int `yaml:"from"`
	To    [3]int `yaml:"to"`
	Block string `yaml:"block"`
}

type Machine struct {
	Pos     [3]int         `yaml:"pos"`
	SourceA *[3]int        `yaml:"source_a"`
	SourceB *[3]int        `yaml:"source_b"`
	Target  *[3]int        `yaml:"target"`
	Energy  int            `yaml:"energy"`
	Fields  map[string]int `yaml:"fields"`
	Slots   []Slot         `yaml:"slots"`
}

type Slot struct {
	Slot  int    `yaml:"slot"`
	Item  string `yaml:"item"`
	Count int    `yaml:"count"`
}

// maxFill bounds a single fill so a typo cannot allocate the world.
const maxFill = 1 << 20

func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Scenario{}, fmt.Errorf("scenario: %w", err)
	}
	return s, nil
}

// Apply seeds w. It must be called before the world loop starts.
func (s Scenario) Apply(w *world.World) error {
	for _, f := range s.Fills {
		a, b := geom.FromArray(f.From), geom.FromArray(f.To)
		d := b.Sub(a).Abs()
		if (d.X+1)*(d.Y+1)*(d.Z+1) > maxFill {
			return fmt.Errorf("fill %s..%s: too large", a, b)
		}
		block := strings.TrimSpace(f.Block)
		for _, p := range geom.Box(a, b) {
			w.SetBlock(p, block)
		}
	}
	for _, b := range s.Blocks {
		w.SetBlock(geom.FromArray(b.Pos), strings.TrimSpace(b.Block))
	}
	for _, p := range s.Powered {
		w.SetPowered(geom.FromArray(p), true)
	}
	for i, m := range s.Machines {
		if err := m.apply(w); err != nil {
			return fmt.Errorf("machines[%d]: %w", i, err)
		}
	}
	return nil
}

func (m Machine) apply(w *world.World) error {
	pos := geom.FromArray(m.Pos)
	if b := w.OccupantAt(pos); b != "" {
		return fmt.Errorf("position %s is occupied by %s", pos, b)
	}
	mach, err := w.PlaceMachine(pos)
	if err != nil {
		return err
	}
	anchors := []struct {
		slot int
		pos  *[3]int
	}{
		{inventory.SlotSourceA, m.SourceA},
		{inventory.SlotSourceB, m.SourceB},
		{inventory.SlotTarget, m.Target},
	}
	for _, a := range anchors {
		if a.pos == nil {
			continue
		}
		if err := mach.Inventory.Set(a.slot, inventory.MarkerAt(geom.FromArray(*a.pos))); err != nil {
			return err
		}
	}
	for _, sl := range m.Slots {
		if inventory.IsMarkerSlot(sl.Slot) {
			return fmt.Errorf("slot %d is reserved for markers", sl.Slot)
		}
		if err := mach.Inventory.Set(sl.Slot, inventory.Stack{Item: strings.TrimSpace(sl.Item), Count: sl.Count}); err != nil {
			return err
		}
	}
	fieldMax := w.BuilderConfig().FieldMax
	for name, v := range m.Fields {
		if err := mach.State.Set(builder.Field(strings.ToLower(name)), v, fieldMax); err != nil {
			return err
		}
	}
	mach.Energy.Receive(m.Energy)
	return nil
}
