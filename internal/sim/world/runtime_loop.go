package world

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"patternbuilder.ai/internal/protocol"
	"patternbuilder.ai/internal/sim/builder"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingReqs []ReqEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingReqs = append(pendingReqs, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingReqs)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingReqs = pendingReqs[:0]
		}
	}
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. It returns the completed tick and the state digest.
func (w *World) StepOnce(reqs []ReqEnvelope) (tick uint64, digest string) {
	w.step(nil, nil, reqs)
	tick = w.tick.Load()
	return tick, w.StateDigest()
}

func (w *World) step(joins []JoinRequest, leaves []string, reqs []ReqEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	for _, id := range leaves {
		delete(w.clients, id)
	}
	for _, req := range joins {
		resp := w.handleJoin(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}

	// Requests apply in inbox order, before any machine runs.
	recorded := make([]RecordedReq, 0, len(reqs))
	for _, env := range reqs {
		ack := w.applyReq(env, nowTick)
		recorded = append(recorded, RecordedReq{SessionID: env.SessionID, Req: env.Req, Code: ack.Code})
		if cl := w.clients[env.SessionID]; cl != nil {
			if b, err := json.Marshal(ack); err == nil {
				sendLatest(cl.Out, b)
			}
		}
	}

	builds := w.systemBuilders(nowTick)

	nextTick := w.tick.Add(1)
	digest := w.StateDigest()
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Requests: recorded, Builds: builds, Digest: digest})
	}

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && nextTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot()
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	if len(w.clients) > 0 && nextTick%uint64(w.cfg.StateEveryTicks) == 0 {
		b, err := json.Marshal(w.BuildState())
		if err == nil {
			for _, cl := range w.clients {
				sendLatest(cl.Out, b)
			}
		}
	}

	w.publishMetrics(nextTick, builds, float64(time.Since(stepStart).Microseconds())/1000.0)
}

// systemBuilders ticks every machine in position order and audits placements.
func (w *World) systemBuilders(nowTick uint64) []RecordedBuild {
	cfg := w.BuilderConfig()
	var builds []RecordedBuild
	for _, pos := range w.MachinePositions() {
		m := w.machines[pos]
		st := m.Tick(w, w.aliases, w.powered[pos], cfg)
		if st.Phase != builder.PhaseBuilding {
			continue
		}
		builds = append(builds, RecordedBuild{
			Machine: pos.Array(),
			Outcome: st.Outcome.String(),
			Index:   st.Index,
			Source:  st.Source.Array(),
			Target:  st.Target.Array(),
			Block:   st.Block,
		})
		if st.Outcome == builder.OutcomePlaced {
			w.audit(AuditEntry{
				Tick:   nowTick,
				Actor:  "MACHINE@" + pos.String(),
				Action: "SET_BLOCK",
				Pos:    st.Target.Array(),
				From:   "",
				To:     st.Block,
				Reason: "PATTERN_BUILD",
				Details: map[string]any{
					"source": st.Source.Array(),
					"index":  st.Index,
					"slot":   st.Slot,
				},
			})
		}
	}
	return builds
}

func (w *World) handleJoin(req JoinRequest) JoinResponse {
	n := w.nextSess.Add(1)
	id := fmt.Sprintf("S%06d", n)
	if req.Out != nil {
		w.clients[id] = &clientState{Name: req.Name, Out: req.Out}
	}
	cfg := w.BuilderConfig()
	return JoinResponse{
		SessionID: id,
		Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       id,
			WorldParams: protocol.WorldParams{
				WorldID:    w.cfg.ID,
				TickRateHz: w.cfg.TickRateHz,
				TimerFull:  cfg.TimerFull,
				TimerSkip:  cfg.TimerSkip,
				FieldMax:   cfg.FieldMax,
				FuelCost:   cfg.FuelCost,
			},
			AliasesDigest: w.aliases.Digest(),
		},
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
