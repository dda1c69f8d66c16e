package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	persistlog "patternbuilder.ai/internal/persistence/log"
	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/scenario"
	"patternbuilder.ai/internal/sim/tuning"
	"patternbuilder.ai/internal/sim/world"
	"patternbuilder.ai/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		worldID      = flag.String("world", "world_1", "world id")
		configDir    = flag.String("configs", "./configs", "config directory")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		aliasesPath  = flag.String("aliases", "", "path to aliases.json (default: <configs>/aliases.json)")
		scenarioPath = flag.String("scenario", "", "yaml seed applied to a fresh world (default: <configs>/scenario.yaml if present)")
		disableDB    = flag.Bool("disable_db", false, "disable indexing (tick/audit + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tune, err := tuning.Load(orDefault(*tuningPath, filepath.Join(*configDir, "tuning.yaml")))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found; using defaults")
	}

	table, err := aliases.Load(orDefault(*aliasesPath, filepath.Join(*configDir, "aliases.json")))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load aliases: %v", err)
		}
		logger.Printf("aliases not found; using built-in table")
		table = aliases.Defaults()
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(table, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	w, err := world.New(world.WorldConfig{
		ID:                 *worldID,
		TickRateHz:         tune.TickRateHz,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
		StateEveryTicks:    tune.StateEveryTicks,
		EnergyCapacity:     tune.Builder.EnergyCapacity,
		Builder:            tune.BuilderConfig(),
	}, table)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.AliasesDigest != "" && snap.AliasesDigest != table.Digest() {
			logger.Printf("aliases changed since snapshot (snap=%s now=%s)", snap.AliasesDigest, table.Digest())
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	} else {
		sp := strings.TrimSpace(*scenarioPath)
		explicit := sp != ""
		if !explicit {
			sp = filepath.Join(*configDir, "scenario.yaml")
		}
		sc, err := scenario.Load(sp)
		switch {
		case err == nil:
			if err := sc.Apply(w); err != nil {
				logger.Fatalf("apply scenario: %v", err)
			}
			logger.Printf("seeded fresh world from %s (machines=%d)", sp, len(sc.Machines))
		case os.IsNotExist(err) && !explicit:
			logger.Printf("fresh world without scenario")
		default:
			logger.Fatalf("load scenario: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetAuditLogger(auditLog)
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, w.CurrentTick(), w.Metrics())
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{*worldID, w.CurrentTick(), w.Metrics()})
	})
	mux.HandleFunc("/admin/v1/history", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		pos, err := parsePos(r.URL.Query().Get("pos"))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := idx.History(r.Context(), pos, limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rows)
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(w, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s tick_rate=%dHz", *addr, *worldID, tune.TickRateHz)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-worldDone

	// Final snapshot so a restart resumes where we stopped.
	final := w.ExportSnapshot()
	path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", final.Header.Tick))
	if err := snapshot.WriteSnapshot(path, final); err != nil {
		logger.Printf("final snapshot: %v", err)
	} else {
		logger.Printf("final snapshot %s", path)
	}
}

func writeMetrics(rw http.ResponseWriter, worldID string, tick uint64, m world.WorldMetrics) {
	fmt.Fprintf(rw, "# HELP patternbuilder_world_tick Current world tick.\n")
	fmt.Fprintf(rw, "# TYPE patternbuilder_world_tick gauge\n")
	fmt.Fprintf(rw, "patternbuilder_world_tick{world=%q} %d\n", worldID, tick)

	fmt.Fprintf(rw, "# HELP patternbuilder_world_machines Placed pattern builders.\n")
	fmt.Fprintf(rw, "# TYPE patternbuilder_world_machines gauge\n")
	fmt.Fprintf(rw, "patternbuilder_world_machines{world=%q} %d\n", worldID, m.Machines)

	fmt.Fprintf(rw, "# HELP patternbuilder_world_clients Current number of connected clients.\n")
	fmt.Fprintf(rw, "# TYPE patternbuilder_world_clients gauge\n")
	fmt.Fprintf(rw, "patternbuilder_world_clients{world=%q} %d\n", worldID, m.Clients)

	fmt.Fprintf(rw, "# HELP patternbuilder_world_loaded_chunks Loaded chunk count.\n")
	fmt.Fprintf(rw, "# TYPE patternbuilder_world_loaded_chunks gauge\n")
	fmt.Fprintf(rw, "patternbuilder_world_loaded_chunks{world=%q} %d\n", worldID, m.LoadedChunks)

	fmt.Fprintf(rw, "# HELP patternbuilder_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE patternbuilder_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "patternbuilder_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "patternbuilder_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "patternbuilder_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)

	fmt.Fprintf(rw, "# HELP patternbuilder_builds_last_step Build outcomes in the last step.\n")
	fmt.Fprintf(rw, "# TYPE patternbuilder_builds_last_step gauge\n")
	fmt.Fprintf(rw, "patternbuilder_builds_last_step{world=%q,outcome=%q} %d\n", worldID, "placed", m.Placed)
	fmt.Fprintf(rw, "patternbuilder_builds_last_step{world=%q,outcome=%q} %d\n", worldID, "skipped", m.Skipped)
	fmt.Fprintf(rw, "patternbuilder_builds_last_step{world=%q,outcome=%q} %d\n", worldID, "no_slot", m.NoSlot)

	fmt.Fprintf(rw, "# HELP patternbuilder_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE patternbuilder_world_step_ms gauge\n")
	fmt.Fprintf(rw, "patternbuilder_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// parsePos reads "x,y,z".
func parsePos(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("pos: want x,y,z, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, fmt.Errorf("pos: %w", err)
		}
		out[i] = n
	}
	return out, nil
}
