package main

import (
	"testing"

	"patternbuilder.ai/internal/protocol"
)

func TestBuildReq(t *testing.T) {
	req, err := buildReq(reqFlags{Op: "set_slot", Machine: "1, 2,3", Slot: 18, Item: "patternbuilder:location_marker", Count: 1, Marker: "-4,0,9"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.Op != protocol.OpSetSlot || req.Machine != [3]int{1, 2, 3} || req.Slot != 18 {
		t.Fatalf("req = %+v", req)
	}
	if req.Stack == nil || req.Stack.Marker == nil || *req.Stack.Marker != [3]int{-4, 0, 9} {
		t.Fatalf("stack = %+v", req.Stack)
	}

	if req, err := buildReq(reqFlags{}); err != nil || req != nil {
		t.Fatalf("empty op: req=%v err=%v", req, err)
	}
	if _, err := buildReq(reqFlags{Op: "SET_FIELD", Machine: "0,0,0"}); err == nil {
		t.Fatalf("expected missing field error")
	}
	if _, err := buildReq(reqFlags{Op: "CHARGE", Machine: "0,0"}); err == nil {
		t.Fatalf("expected bad machine error")
	}
	if _, err := buildReq(reqFlags{Op: "JUMP", Machine: "0,0,0"}); err == nil {
		t.Fatalf("expected unknown op error")
	}
}
