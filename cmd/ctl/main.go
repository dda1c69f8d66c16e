package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"patternbuilder.ai/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "ctl", "client name")
		op      = flag.String("op", "", "request op (SET_FIELD, SET_SLOT, SET_POWER, SET_BLOCK, CHARGE, PLACE_MACHINE, REMOVE_MACHINE); empty only watches")
		machine = flag.String("machine", "0,0,0", "machine position x,y,z")
		field   = flag.String("field", "", "field name for SET_FIELD")
		value   = flag.Int("value", 0, "field value for SET_FIELD")
		slot    = flag.Int("slot", 0, "slot index for SET_SLOT")
		item    = flag.String("item", "", "item id for SET_SLOT (empty clears the slot)")
		count   = flag.Int("count", 1, "stack size for SET_SLOT")
		marker  = flag.String("marker", "", "marker position x,y,z for SET_SLOT")
		pos     = flag.String("pos", "0,0,0", "position x,y,z for SET_BLOCK and SET_POWER")
		block   = flag.String("block", "", "block id for SET_BLOCK (empty is air)")
		powered = flag.Bool("powered", true, "power state for SET_POWER")
		amount  = flag.Int("amount", 0, "energy for CHARGE")
		watch   = flag.Int("watch", 0, "print this many STATE messages before exiting")
		timeout = flag.Duration("timeout", 10*time.Second, "overall timeout")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[ctl] ", log.LstdFlags|log.Lmicroseconds)

	req, err := buildReq(reqFlags{
		Op: *op, Machine: *machine, Field: *field, Value: *value, Slot: *slot, Item: *item,
		Count: *count, Marker: *marker, Pos: *pos, Block: *block, Powered: *powered, Amount: *amount,
	})
	if err != nil {
		logger.Fatalf("bad flags: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(*timeout))

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: *name}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s world=%s tick_rate=%d aliases=%s",
		welcome.SessionID, welcome.WorldParams.WorldID, welcome.WorldParams.TickRateHz, welcome.AliasesDigest)

	waitAck := req != nil
	if waitAck {
		if err := conn.WriteJSON(req); err != nil {
			logger.Fatalf("send REQ: %v", err)
		}
	}

	states := 0
	for waitAck || states < *watch {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil || req == nil || ack.AckFor != req.ID {
				continue
			}
			fmt.Println(string(msg))
			waitAck = false
			if !ack.Accepted {
				logger.Printf("rejected %s: %s", ack.Code, protocol.Hint(ack.Code))
				if protocol.Retryable(ack.Code) {
					os.Exit(3)
				}
				os.Exit(1)
			}
		case protocol.TypeState:
			if states < *watch {
				fmt.Println(string(msg))
				states++
			}
		}
	}
}

type reqFlags struct {
	Op      string
	Machine string
	Field   string
	Value   int
	Slot    int
	Item    string
	Count   int
	Marker  string
	Pos     string
	Block   string
	Powered bool
	Amount  int
}

// buildReq returns nil when no op was given.
func buildReq(f reqFlags) (*protocol.ReqMsg, error) {
	op := strings.ToUpper(strings.TrimSpace(f.Op))
	if op == "" {
		return nil, nil
	}
	m, err := parseVec(f.Machine)
	if err != nil {
		return nil, fmt.Errorf("machine: %w", err)
	}
	req := &protocol.ReqMsg{
		Type:            protocol.TypeReq,
		ProtocolVersion: protocol.Version,
		ID:              fmt.Sprintf("ctl_%d", time.Now().UnixNano()),
		Op:              op,
		Machine:         m,
	}
	switch op {
	case protocol.OpSetField:
		if f.Field == "" {
			return nil, fmt.Errorf("SET_FIELD needs -field")
		}
		req.Field = f.Field
		req.Value = f.Value
	case protocol.OpSetSlot:
		req.Slot = f.Slot
		if f.Item != "" {
			req.Stack = &protocol.StackWire{Item: f.Item, Count: f.Count}
			if f.Marker != "" {
				p, err := parseVec(f.Marker)
				if err != nil {
					return nil, fmt.Errorf("marker: %w", err)
				}
				req.Stack.Marker = &p
			}
		}
	case protocol.OpSetBlock, protocol.OpSetPower:
		p, err := parseVec(f.Pos)
		if err != nil {
			return nil, fmt.Errorf("pos: %w", err)
		}
		req.Pos = p
		req.Block = f.Block
		req.Powered = f.Powered
	case protocol.OpCharge:
		req.Amount = f.Amount
	case protocol.OpPlaceMachine, protocol.OpRemoveMachine:
	default:
		return nil, fmt.Errorf("unknown op %q", op)
	}
	return req, nil
}

func parseVec(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, err
		}
		out[i] = n
	}
	return out, nil
}
