package world

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
)

// World is a single-threaded authoritative simulation of blocks and
// pattern-builder machines. All state must be accessed only from the world
// loop goroutine.
type World struct {
	cfg     WorldConfig
	aliases *aliases.Table

	// tick counts completed ticks.
	tick atomic.Uint64

	blocks   *BlockStore
	powered  map[geom.Vec3i]bool
	machines map[geom.Vec3i]*builder.Machine

	clients  map[string]*clientState
	nextSess atomic.Uint64

	inbox chan ReqEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing happens off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // WorldMetrics
}

type clientState struct {
	Name string
	Out  chan []byte
}

func New(cfg WorldConfig, table *aliases.Table) (*World, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("world id is required")
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if cfg.StateEveryTicks <= 0 {
		cfg.StateEveryTicks = 10
	}
	if table == nil {
		table = aliases.Defaults()
	}
	return &World{
		cfg:      cfg,
		aliases:  table,
		blocks:   NewBlockStore(),
		powered:  map[geom.Vec3i]bool{},
		machines: map[geom.Vec3i]*builder.Machine{},
		clients:  map[string]*clientState{},
		inbox:    make(chan ReqEnvelope, 1024),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		stop:     make(chan struct{}),
	}, nil
}

func (w *World) ID() string                                    { return w.cfg.ID }
func (w *World) Config() WorldConfig                           { return w.cfg }
func (w *World) Aliases() *aliases.Table                       { return w.aliases }
func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- ReqEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest  { return w.join }
func (w *World) Leave() chan<- string      { return w.leave }

// Stop ends Run. It must be called at most once.
func (w *World) Stop() { close(w.stop) }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// BuilderConfig returns the machine config with defaults applied.
func (w *World) BuilderConfig() builder.Config { return w.cfg.Builder.WithDefaults() }

// IsEmpty, OccupantAt and SetOccupant let machines read and write blocks.
// A cell holds a machine or a block, never both: machine cells are never
// empty, read as no copyable block, and refuse writes.

func (w *World) IsEmpty(p geom.Vec3i) bool {
	if _, ok := w.machines[p]; ok {
		return false
	}
	return w.blocks.Get(p) == ""
}

func (w *World) OccupantAt(p geom.Vec3i) string { return w.blocks.Get(p) }

func (w *World) SetOccupant(p geom.Vec3i, block string) {
	if _, ok := w.machines[p]; ok {
		return
	}
	w.blocks.Set(p, block)
}

// SetBlock changes a block outside of a machine step.
func (w *World) SetBlock(p geom.Vec3i, block string) { w.blocks.Set(p, block) }

func (w *World) SetPowered(p geom.Vec3i, on bool) {
	if on {
		w.powered[p] = true
		return
	}
	delete(w.powered, p)
}

func (w *World) Powered(p geom.Vec3i) bool { return w.powered[p] }

// PlaceMachine installs a machine with default state. It fails if one
// already exists at p.
func (w *World) PlaceMachine(p geom.Vec3i) (*builder.Machine, error) {
	if _, ok := w.machines[p]; ok {
		return nil, fmt.Errorf("machine already at %s", p)
	}
	m := builder.NewMachine(p, w.cfg.EnergyCapacity)
	w.machines[p] = m
	return m, nil
}

func (w *World) RemoveMachine(p geom.Vec3i) bool {
	if _, ok := w.machines[p]; !ok {
		return false
	}
	delete(w.machines, p)
	return true
}

func (w *World) Machine(p geom.Vec3i) (*builder.Machine, bool) {
	m, ok := w.machines[p]
	return m, ok
}

// MachinePositions returns machine positions in tick order.
func (w *World) MachinePositions() []geom.Vec3i {
	out := make([]geom.Vec3i, 0, len(w.machines))
	for p := range w.machines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
