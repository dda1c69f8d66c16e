package protocol

// ACK rejection codes. E_PROTO_* and E_WORLD_BUSY come from the transport;
// the rest from request handling inside the tick.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrWorldBusy       = "E_WORLD_BUSY"

	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNotFound      = "E_NOT_FOUND"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrConflict      = "E_CONFLICT"
	ErrInternal      = "E_INTERNAL"
)

type codeInfo struct {
	hint      string
	retryable bool
}

var codes = map[string]codeInfo{
	ErrProtoBadRequest: {hint: "message failed to decode or validate"},
	ErrProtoVersion:    {hint: "protocol_version does not match the server"},
	ErrWorldBusy:       {hint: "request queue full, resend later", retryable: true},
	ErrBadRequest:      {hint: "field, slot or value out of range"},
	ErrNotFound:        {hint: "no machine at that position"},
	ErrInvalidTarget:   {hint: "position or slot cannot take that change"},
	ErrConflict:        {hint: "position already holds a machine"},
	ErrInternal:        {hint: "server error"},
}

// IsKnownCode accepts the empty code of an accepted ACK.
func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := codes[code]
	return ok
}

// Retryable reports whether the same request may succeed when sent again
// unchanged.
func Retryable(code string) bool { return codes[code].retryable }

// Hint is a short operator-facing explanation of code.
func Hint(code string) string { return codes[code].hint }
