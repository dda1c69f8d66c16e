package world

import (
	"encoding/json"
	"testing"

	"patternbuilder.ai/internal/protocol"
	"patternbuilder.ai/internal/sim/builder"
	"patternbuilder.ai/internal/sim/geom"
	"patternbuilder.ai/internal/sim/inventory"
)

func TestApplyReq_Codes(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.PlaceMachine(geom.V(1, 2, 3)); err != nil {
		t.Fatalf("place: %v", err)
	}
	w.SetBlock(geom.V(9, 9, 9), "minecraft:dirt")
	here := [3]int{1, 2, 3}

	cases := []struct {
		name     string
		env      ReqEnvelope
		accepted bool
		code     string
	}{
		{"set field", req(protocol.OpSetField, func(r *protocol.ReqMsg) { r.Machine = here; r.Field = "rotation"; r.Value = 5 }), true, ""},
		{"unknown field", req(protocol.OpSetField, func(r *protocol.ReqMsg) { r.Machine = here; r.Field = "speed" }), false, protocol.ErrBadRequest},
		{"missing machine", req(protocol.OpSetField, func(r *protocol.ReqMsg) { r.Field = "timer" }), false, protocol.ErrNotFound},
		{"slot range", req(protocol.OpSetSlot, func(r *protocol.ReqMsg) {
			r.Machine = here
			r.Slot = 21
			r.Stack = &protocol.StackWire{Item: "minecraft:stone", Count: 1}
		}), false, protocol.ErrBadRequest},
		{"marker only", req(protocol.OpSetSlot, func(r *protocol.ReqMsg) {
			r.Machine = here
			r.Slot = inventory.SlotTarget
			r.Stack = &protocol.StackWire{Item: "minecraft:stone", Count: 1}
		}), false, protocol.ErrInvalidTarget},
		{"marker slot", req(protocol.OpSetSlot, func(r *protocol.ReqMsg) {
			r.Machine = here
			r.Slot = inventory.SlotTarget
			r.Stack = &protocol.StackWire{Item: inventory.MarkerItem, Count: 1, Marker: &[3]int{4, 5, 6}}
		}), true, ""},
		{"charge", req(protocol.OpCharge, func(r *protocol.ReqMsg) { r.Machine = here; r.Amount = 50 }), true, ""},
		{"charge zero", req(protocol.OpCharge, func(r *protocol.ReqMsg) { r.Machine = here }), false, protocol.ErrBadRequest},
		{"place twice", req(protocol.OpPlaceMachine, func(r *protocol.ReqMsg) { r.Machine = here }), false, protocol.ErrConflict},
		{"place on block", req(protocol.OpPlaceMachine, func(r *protocol.ReqMsg) { r.Machine = [3]int{9, 9, 9} }), false, protocol.ErrInvalidTarget},
		{"block on machine", req(protocol.OpSetBlock, func(r *protocol.ReqMsg) { r.Pos = here; r.Block = "minecraft:stone" }), false, protocol.ErrConflict},
		{"set block", req(protocol.OpSetBlock, func(r *protocol.ReqMsg) { r.Pos = [3]int{0, 0, 0}; r.Block = "minecraft:stone" }), true, ""},
		{"power", req(protocol.OpSetPower, func(r *protocol.ReqMsg) { r.Pos = here; r.Powered = true }), true, ""},
		{"remove missing", req(protocol.OpRemoveMachine, func(r *protocol.ReqMsg) { r.Machine = [3]int{7, 7, 7} }), false, protocol.ErrNotFound},
		{"unknown op", req("DANCE", nil), false, protocol.ErrBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ack := w.applyReq(tc.env, 3)
			if ack.Accepted != tc.accepted || ack.Code != tc.code {
				t.Fatalf("ack = %+v, want accepted=%v code=%q", ack, tc.accepted, tc.code)
			}
			if ack.AckFor != "R1" || ack.ServerTick != 3 {
				t.Fatalf("ack header = %+v", ack)
			}
		})
	}

	m, _ := w.Machine(geom.V(1, 2, 3))
	if m.State.Rotation != 1 {
		t.Fatalf("rotation = %d, want 1", m.State.Rotation)
	}
	if m.Energy.Stored != 50 {
		t.Fatalf("energy = %d, want 50", m.Energy.Stored)
	}
	if a := m.Anchors(); a.Target == nil || *a.Target != geom.V(4, 5, 6) {
		t.Fatalf("target anchor = %v", a.Target)
	}
	if !w.Powered(geom.V(1, 2, 3)) {
		t.Fatalf("expected power at machine")
	}
}

func TestStep_AckDeliveredToSession(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 4)
	resp := make(chan JoinResponse, 1)
	w.step([]JoinRequest{{Name: "ctl", Out: out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.Welcome.WorldParams.TimerFull != 2 || jr.Welcome.AliasesDigest == "" {
		t.Fatalf("welcome = %+v", jr.Welcome)
	}
	drain(out)

	env := req(protocol.OpPlaceMachine, func(r *protocol.ReqMsg) { r.Machine = [3]int{0, 0, 0} })
	env.SessionID = jr.SessionID
	w.step(nil, nil, []ReqEnvelope{env})

	var ack protocol.AckMsg
	if err := json.Unmarshal(<-out, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Type != protocol.TypeAck || !ack.Accepted {
		t.Fatalf("ack = %+v", ack)
	}

	var st protocol.StateMsg
	if err := json.Unmarshal(<-out, &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Type != protocol.TypeState || len(st.Machines) != 1 || st.Machines[0].Phase != builder.PhaseIdle.String() {
		t.Fatalf("state = %+v", st)
	}
}

func drain(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
