package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	persistlog "patternbuilder.ai/internal/persistence/log"
	"patternbuilder.ai/internal/persistence/snapshot"
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/world"
)

var errStop = errors.New("stop")

func main() {
	var (
		snapPath    = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir   = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		auditDir    = flag.String("audit", "", "audit dir containing audit-*.jsonl.zst (optional)")
		actor       = flag.String("actor", "", "only print audits from this actor, e.g. MACHINE@-5,0,0")
		aliasesPath = flag.String("aliases", "", "aliases.json used by the recorded run (default: built-in table)")
		fromTick    = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick      = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *auditDir != "" {
		if err := printAudits(*auditDir, *actor); err != nil {
			fmt.Fprintln(os.Stderr, "audit:", err)
			os.Exit(1)
		}
		if *snapPath == "" {
			return
		}
	}

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d tick_rate=%d palette=%d chunks=%d powered=%d machines=%d aliases=%s\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.TickRate,
		len(snap.Palette), len(snap.Chunks), len(snap.Powered), len(snap.Machines), snap.AliasesDigest)
	for _, m := range snap.Machines {
		fmt.Printf("  machine %v timer=%d index=%d rotation=%d flips=%t/%t/%t gated=%t energy=%d/%d slots=%d\n",
			m.Pos, m.Timer, m.ShapeIndex, m.Rotation, m.FlipX, m.FlipY, m.FlipZ, m.RedstoneGated,
			m.EnergyStored, m.EnergyCapacity, len(m.Slots))
	}

	if *eventsDir == "" {
		return
	}

	table := aliases.Defaults()
	if *aliasesPath != "" {
		table, err = aliases.Load(*aliasesPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load aliases:", err)
			os.Exit(1)
		}
	}
	if snap.AliasesDigest != "" && snap.AliasesDigest != table.Digest() {
		fmt.Fprintf(os.Stderr, "warning: aliases digest %s differs from snapshot %s\n", table.Digest(), snap.AliasesDigest)
	}

	w, err := world.New(world.WorldConfig{
		ID:         snap.Header.WorldID,
		TickRateHz: snap.TickRate,
	}, table)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}

	files, err := persistlog.ListFiles(*eventsDir, "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	checked, err := replay(w, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
}

// replay re-applies recorded requests on top of w and compares the state
// digest after every tick with the recorded one.
func replay(w *world.World, files []string, fromTick, toTick uint64) (uint64, error) {
	startTick := w.CurrentTick()
	verifyFrom := fromTick
	if verifyFrom < startTick {
		verifyFrom = startTick
	}

	var checked uint64
	for i, path := range files {
		if first, ok := persistlog.SegmentStart(path); ok && toTick != 0 && first > toTick {
			break
		}
		if i+1 < len(files) {
			if next, ok := persistlog.SegmentStart(files[i+1]); ok && next <= startTick {
				continue
			}
		}
		err := persistlog.ReadJSONL(path, func(entry world.TickLogEntry) error {
			if entry.Tick < startTick {
				return nil
			}
			if toTick != 0 && entry.Tick > toTick {
				return errStop
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
			}

			reqs := make([]world.ReqEnvelope, 0, len(entry.Requests))
			for _, r := range entry.Requests {
				reqs = append(reqs, world.ReqEnvelope{SessionID: r.SessionID, Req: r.Req})
			}
			_, gotDigest := w.StepOnce(reqs)

			if entry.Tick >= verifyFrom {
				checked++
				if gotDigest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", entry.Tick, gotDigest, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}

func printAudits(dir, actor string) error {
	files, err := persistlog.ListFiles(dir, "audit")
	if err != nil {
		return err
	}
	actor = strings.TrimSpace(actor)
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(a world.AuditEntry) error {
			if actor != "" && a.Actor != actor {
				return nil
			}
			fmt.Printf("tick=%d actor=%s action=%s pos=%v from=%q to=%q reason=%s\n",
				a.Tick, a.Actor, a.Action, a.Pos, a.From, a.To, a.Reason)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
