package feed

import "time"

// State is the lifecycle state of the status feed connection.
type State int

const (
	// StateIdle means Connect has never been called.
	StateIdle State = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateOpen means the socket is up and subscribed.
	StateOpen

	// StateClosing means Disconnect is closing the socket.
	StateClosing

	// StateClosed means there is no socket. A retry may be pending.
	StateClosed

	// StateFailed means the last dial failed, or retries are exhausted.
	StateFailed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateEvent is emitted on every state transition.
type StateEvent struct {
	Old      State
	New      State
	Err      error // what caused the transition, if anything
	Attempts int   // reconnect attempts used so far
	At       time.Time
}

// Connected reports whether this event is the "connected" signal.
func (e StateEvent) Connected() bool {
	return e.New == StateOpen && e.Old != StateOpen
}

// ConnectionStatus is a point-in-time view of the manager, for hosts that
// need to decide whether to fall back to polling.
type ConnectionStatus struct {
	State        State     `json:"state"`
	Endpoint     string    `json:"endpoint"`
	Attempts     int       `json:"reconnect_attempts"`
	MaxAttempts  int       `json:"max_attempts"`
	RetryPending bool      `json:"retry_pending"`
	Subscribed   bool      `json:"subscribed"`
	SessionID    string    `json:"session_id,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastMessage  time.Time `json:"last_message,omitempty"`
}
