package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
	AliasesDigest   string      `json:"aliases_digest"`
}

type WorldParams struct {
	WorldID    string `json:"world_id"`
	TickRateHz int    `json:"tick_rate_hz"`
	TimerFull  int    `json:"timer_full"`
	TimerSkip  int    `json:"timer_skip"`
	FieldMax   int    `json:"field_max"`
	FuelCost   int    `json:"fuel_cost"`
}

// REQ (client -> server). Which fields are read depends on Op.
type ReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`

	Machine [3]int     `json:"machine"`
	Field   string     `json:"field,omitempty"`
	Value   int        `json:"value,omitempty"`
	Slot    int        `json:"slot,omitempty"`
	Stack   *StackWire `json:"stack,omitempty"`
	Pos     [3]int     `json:"pos,omitempty"`
	Block   string     `json:"block,omitempty"`
	Powered bool       `json:"powered,omitempty"`
	Amount  int        `json:"amount,omitempty"`
}

type StackWire struct {
	Item   string  `json:"item"`
	Count  int     `json:"count"`
	Marker *[3]int `json:"marker,omitempty"`
}

// ACK (server -> client)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// STATE (server -> client)
type StateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	WorldID         string         `json:"world_id"`
	Tick            uint64         `json:"tick"`
	Machines        []MachineState `json:"machines"`
}

type MachineState struct {
	Pos           [3]int `json:"pos"`
	Phase         string `json:"phase"`
	Outcome       string `json:"outcome"`
	Timer         int    `json:"timer"`
	ShapeIndex    int    `json:"shape_index"`
	ShapeLen      int    `json:"shape_len"`
	Rotation      int    `json:"rotation"`
	RotationName  string `json:"rotation_name"`
	FlipX         bool   `json:"flip_x"`
	FlipY         bool   `json:"flip_y"`
	FlipZ         bool   `json:"flip_z"`
	RedstoneGated bool   `json:"redstone_gated"`
	Particles     string `json:"particles"`
	Energy        int    `json:"energy"`

	Preview     []PreviewBlock `json:"preview,omitempty"`
	ParticlesAt [][3]int       `json:"particles_at,omitempty"`
}

type PreviewBlock struct {
	Pos   [3]int `json:"pos"`
	Block string `json:"block"`
}
