package builder

// Energy is a bounded store drawn on every working tick.
type Energy struct {
	Capacity int
	Stored   int
}

// Receive adds up to n units and returns how many were accepted.
func (e *Energy) Receive(n int) int {
	if n <= 0 {
		return 0
	}
	room := e.Capacity - e.Stored
	if room <= 0 {
		return 0
	}
	if n > room {
		n = room
	}
	e.Stored += n
	return n
}

// Burn draws cost units. A zero cost always succeeds.
func (e *Energy) Burn(cost int) bool {
	if cost <= 0 {
		return true
	}
	if e.Stored < cost {
		return false
	}
	e.Stored -= cost
	return true
}

// Clamp bounds Stored to [0, Capacity].
func (e *Energy) Clamp() {
	e.Stored = max(0, min(e.Stored, e.Capacity))
}
