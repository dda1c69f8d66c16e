package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"

	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/world"
)

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to .snap.zst")
		machine  = flag.String("machine", "", "machine position x,y,z (default: first machine)")
		mode     = flag.String("mode", "", "render mode off|outline|phantom|solid (default: the machine's particle mode)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	w, err := world.New(world.WorldConfig{ID: snap.Header.WorldID, TickRateHz: snap.TickRate}, aliases.Defaults())
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}

	m, err := pickMachine(w, *machine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	v := newView(w, m)
	if *mode != "" {
		p, ok := builder.ParseParticles(*mode)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
			os.Exit(2)
		}
		v.mode = p
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "screen init:", err)
		os.Exit(1)
	}
	defer screen.Fini()

	for {
		v.draw(screen)
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			if !v.handleKey(ev) {
				return
			}
		}
	}
}

func pickMachine(w *world.World, flagPos string) (*builder.Machine, error) {
	positions := w.MachinePositions()
	if len(positions) == 0 {
		return nil, fmt.Errorf("snapshot has no machines")
	}
	if strings.TrimSpace(flagPos) == "" {
		m, _ := w.Machine(positions[0])
		return m, nil
	}
	parts := strings.Split(flagPos, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("machine: want x,y,z, got %q", flagPos)
	}
	var a [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("machine: %w", err)
		}
		a[i] = n
	}
	m, ok := w.Machine(geom.FromArray(a))
	if !ok {
		return nil, fmt.Errorf("no machine at %v", a)
	}
	return m, nil
}
