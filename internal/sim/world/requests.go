package world

import (
	"errors"
	"fmt"
	"strings"

	"patternbuilder.ai/internal/protocol"
	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

// applyReq applies one client request and returns the ACK to send back.
func (w *World) applyReq(env ReqEnvelope, nowTick uint64) protocol.AckMsg {
	req := env.Req
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          req.ID,
		ServerTick:      nowTick,
	}
	code, err := w.handleReq(env.SessionID, req, nowTick)
	if err != nil {
		ack.Code = code
		ack.Message = err.Error()
		return ack
	}
	ack.Accepted = true
	return ack
}

func (w *World) handleReq(sessionID string, req protocol.ReqMsg, nowTick uint64) (string, error) {
	switch req.Op {
	case protocol.OpSetField:
		m, err := w.mustMachine(req.Machine)
		if err != nil {
			return protocol.ErrNotFound, err
		}
		f := builder.Field(strings.ToLower(strings.TrimSpace(req.Field)))
		if err := m.State.Set(f, req.Value, w.BuilderConfig().FieldMax); err != nil {
			return protocol.ErrBadRequest, err
		}
		return "", nil

	case protocol.OpSetSlot:
		m, err := w.mustMachine(req.Machine)
		if err != nil {
			return protocol.ErrNotFound, err
		}
		var st inventory.Stack
		if req.Stack != nil {
			st = inventory.Stack{Item: strings.TrimSpace(req.Stack.Item), Count: req.Stack.Count}
			if st.Count < 0 {
				return protocol.ErrBadRequest, fmt.Errorf("negative count")
			}
			if req.Stack.Marker != nil {
				p := geom.FromArray(*req.Stack.Marker)
				st.Marker = &p
			}
		}
		if err := m.Inventory.Set(req.Slot, st); err != nil {
			switch {
			case errors.Is(err, inventory.ErrSlotRange):
				return protocol.ErrBadRequest, err
			case errors.Is(err, inventory.ErrMarkerOnly):
				return protocol.ErrInvalidTarget, err
			default:
				return protocol.ErrInternal, err
			}
		}
		return "", nil

	case protocol.OpSetPower:
		w.SetPowered(geom.FromArray(req.Pos), req.Powered)
		return "", nil

	case protocol.OpSetBlock:
		p := geom.FromArray(req.Pos)
		if _, ok := w.machines[p]; ok {
			return protocol.ErrConflict, fmt.Errorf("position %s holds a machine", p)
		}
		block := strings.TrimSpace(req.Block)
		from := w.blocks.Get(p)
		if from == block {
			return "", nil
		}
		w.blocks.Set(p, block)
		w.audit(AuditEntry{
			Tick:   nowTick,
			Actor:  "SESSION@" + sessionID,
			Action: "SET_BLOCK",
			Pos:    p.Array(),
			From:   from,
			To:     block,
			Reason: "REQUEST",
		})
		return "", nil

	case protocol.OpCharge:
		m, err := w.mustMachine(req.Machine)
		if err != nil {
			return protocol.ErrNotFound, err
		}
		if req.Amount <= 0 {
			return protocol.ErrBadRequest, fmt.Errorf("amount must be positive")
		}
		m.Energy.Receive(req.Amount)
		return "", nil

	case protocol.OpPlaceMachine:
		p := geom.FromArray(req.Machine)
		if b := w.blocks.Get(p); b != "" {
			return protocol.ErrInvalidTarget, fmt.Errorf("position %s is occupied by %s", p, b)
		}
		if _, err := w.PlaceMachine(p); err != nil {
			return protocol.ErrConflict, err
		}
		return "", nil

	case protocol.OpRemoveMachine:
		p := geom.FromArray(req.Machine)
		if !w.RemoveMachine(p) {
			return protocol.ErrNotFound, fmt.Errorf("no machine at %s", p)
		}
		return "", nil

	default:
		return protocol.ErrBadRequest, fmt.Errorf("unknown op %q", req.Op)
	}
}

func (w *World) mustMachine(pos [3]int) (*builder.Machine, error) {
	p := geom.FromArray(pos)
	m, ok := w.machines[p]
	if !ok {
		return nil, fmt.Errorf("no machine at %s", p)
	}
	return m, nil
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(e)
}
