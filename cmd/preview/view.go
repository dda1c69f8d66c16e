package main

import (
	"fmt"
	"hash/fnv"

	"github.com/gdamore/tcell/v2"

	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/world"
)

const headerRows = 2

// view renders one horizontal layer of a machine's target region, seen
// from above: columns are X, rows are Z.
type view struct {
	machine  geom.Vec3i
	occupant func(geom.Vec3i) string
	preview  map[geom.Vec3i]string
	targets  int

	mode  builder.Particles
	layer int

	min, max geom.Vec3i
}

func newView(w *world.World, m *builder.Machine) *view {
	src, dst := m.Shapes()
	v := &view{
		machine:  m.Pos,
		occupant: w.OccupantAt,
		preview:  map[geom.Vec3i]string{},
		targets:  len(dst),
		mode:     m.State.Particles,
	}
	for _, pb := range builder.Preview(w, src, dst) {
		v.preview[pb.Pos] = pb.Block
	}
	for i, p := range dst {
		if i == 0 {
			v.min, v.max = p, p
			continue
		}
		v.min = geom.V(min(v.min.X, p.X), min(v.min.Y, p.Y), min(v.min.Z, p.Z))
		v.max = geom.V(max(v.max.X, p.X), max(v.max.Y, p.Y), max(v.max.Z, p.Z))
	}
	v.layer = v.min.Y
	return v
}

// handleKey returns false when the viewer should exit.
func (v *view) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		v.shiftLayer(1)
	case tcell.KeyDown:
		v.shiftLayer(-1)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 'm':
			v.mode = (v.mode + 1) % (builder.ParticlesSolid + 1)
		case 'k':
			v.shiftLayer(1)
		case 'j':
			v.shiftLayer(-1)
		}
	}
	return true
}

func (v *view) shiftLayer(d int) {
	v.layer = max(v.min.Y, min(v.max.Y, v.layer+d))
}

func (v *view) draw(s tcell.Screen) {
	s.Clear()
	width, height := s.Size()

	header := fmt.Sprintf("machine %s  mode %s  layer y=%d [%d..%d]  targets %d  pending %d",
		v.machine, v.mode, v.layer, v.min.Y, v.max.Y, v.targets, len(v.preview))
	drawText(s, 0, 0, width, header, tcell.StyleDefault.Bold(true))
	drawText(s, 0, 1, width, "m: mode  j/k: layer  q: quit", tcell.StyleDefault.Foreground(tcell.ColorGray))

	if v.targets == 0 {
		drawText(s, 0, headerRows, width, "no projected shape (anchors missing)", tcell.StyleDefault)
		s.Show()
		return
	}

	for x := v.min.X; x <= v.max.X; x++ {
		for z := v.min.Z; z <= v.max.Z; z++ {
			col, row := x-v.min.X, z-v.min.Z+headerRows
			if col >= width || row >= height {
				continue
			}
			r, style, ok := v.cell(geom.V(x, v.layer, z))
			if ok {
				s.SetContent(col, row, r, nil, style)
			}
		}
	}
	s.Show()
}

// cell picks the glyph for p in the current mode.
func (v *view) cell(p geom.Vec3i) (rune, tcell.Style, bool) {
	if b := v.occupant(p); b != "" {
		return '#', tcell.StyleDefault.Foreground(tcell.ColorWhite), true
	}
	if !v.mode.PreviewVisible() {
		return 0, tcell.StyleDefault, false
	}
	block, pending := v.preview[p]
	switch v.mode {
	case builder.ParticlesOutline:
		if v.onEdge(p) {
			return '+', tcell.StyleDefault.Foreground(tcell.ColorAqua), true
		}
	case builder.ParticlesPhantom:
		if pending {
			return '░', tcell.StyleDefault.Foreground(tcell.ColorGray), true
		}
	case builder.ParticlesSolid:
		if pending {
			return '█', tcell.StyleDefault.Foreground(blockColor(block)), true
		}
	}
	return 0, tcell.StyleDefault, false
}

func (v *view) onEdge(p geom.Vec3i) bool {
	return p.X == v.min.X || p.X == v.max.X || p.Z == v.min.Z || p.Z == v.max.Z
}

var palette = []tcell.Color{
	tcell.ColorGreen, tcell.ColorBlue, tcell.ColorYellow, tcell.ColorPurple,
	tcell.ColorRed, tcell.ColorTeal, tcell.ColorOlive, tcell.ColorFuchsia,
}

func blockColor(block string) tcell.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(block))
	return palette[h.Sum32()%uint32(len(palette))]
}

func drawText(s tcell.Screen, x, y, width int, text string, style tcell.Style) {
	for _, r := range text {
		if x >= width {
			return
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
