package core

// ConnectionState tracks one peer link from allocation to teardown.
// It only moves forward; a recreated session starts over at StateNew
// under a fresh generation.
type ConnectionState int

const (
	StateNew ConnectionState = iota
	StateNegotiating
	StateConnected
	StateFailed
	StateDisconnected
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session holding this state must be destroyed.
func (s ConnectionState) Terminal() bool {
	return s == StateFailed || s == StateDisconnected || s == StateClosed
}
