package feed

import "encoding/json"

// Inbound message types
const (
	TypeStatusUpdate       = "status_update"
	TypeSingleStatusUpdate = "single_status_update"
	TypePing               = "ping"
	TypePong               = "pong"
	TypeError              = "error"
)

// Outbound message types
const (
	TypeSubscribeStatus   = "subscribe_status"
	TypeRequestFullUpdate = "request_full_update"
)

// Message is an inbound frame from the status feed. Data is left raw; the
// feed does not interpret device-status records.
type Message struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	TotalCount int             `json:"total_count,omitempty"`
	ServerTime string          `json:"server_time,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
}

// OutgoingMessage is a frame sent to the status feed.
type OutgoingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"` // client time, unix millis
}

// forwarded reports whether messages of this type reach the subscriber.
func forwarded(msgType string) bool {
	switch msgType {
	case TypeStatusUpdate, TypeSingleStatusUpdate, TypeError:
		return true
	}
	return false
}
