package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeReq     = "REQ"
	TypeAck     = "ACK"
	TypeState   = "STATE"
)

// Request operations.
const (
	OpSetField      = "SET_FIELD"
	OpSetSlot       = "SET_SLOT"
	OpSetPower      = "SET_POWER"
	OpSetBlock      = "SET_BLOCK"
	OpCharge        = "CHARGE"
	OpPlaceMachine  = "PLACE_MACHINE"
	OpRemoveMachine = "REMOVE_MACHINE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
