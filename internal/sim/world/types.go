package world

import (
	"patternbuilder.ai/internal/protocol"
	"patternbuilder.ai/internal/sim/builder"
)

type WorldConfig struct {
	ID                 string
	TickRateHz         int
	SnapshotEveryTicks int
	StateEveryTicks    int
	EnergyCapacity     int
	Builder            builder.Config
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	SessionID string
	Welcome   protocol.WelcomeMsg
}

type ReqEnvelope struct {
	SessionID string
	Req       protocol.ReqMsg
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64          `json:"tick"`
	Requests []RecordedReq   `json:"requests,omitempty"`
	Builds   []RecordedBuild `json:"builds,omitempty"`
	Digest   string          `json:"digest"`
}

type RecordedReq struct {
	SessionID string          `json:"session_id"`
	Req       protocol.ReqMsg `json:"req"`
	Code      string          `json:"code,omitempty"`
}

// RecordedBuild is one machine build step (placement or skip).
type RecordedBuild struct {
	Machine [3]int `json:"machine"`
	Outcome string `json:"outcome"`
	Index   int    `json:"index"`
	Source  [3]int `json:"source"`
	Target  [3]int `json:"target"`
	Block   string `json:"block,omitempty"`
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "SET_BLOCK"
	Pos     [3]int         `json:"pos"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
