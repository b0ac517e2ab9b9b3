package realtime

// Client actions.
const (
	ActionJoin   = "join_showtime_room"
	ActionLock   = "lock_seat"
	ActionUnlock = "unlock_seat"

	// Heartbeats.  Any inbound frame keeps the connection alive; pong is
	// the answer to a server ping and ping asks the server for a pong.
	ActionPing = "ping"
	ActionPong = "pong"
)

// Server replies that are not seat events.
const (
	TypeSession      = "session"
	TypeLockRejected = "lock_rejected"
	TypeError        = "error"
	TypePing         = "ping"
	TypePong         = "pong"
)

// ClientMessage is one inbound frame.  ShowtimeID may be omitted on lock and
// unlock; the session's current room is used.
type ClientMessage struct {
	Action         string `json:"action"`
	ShowtimeID     string `json:"showtimeId,omitempty"`
	ShowtimeSeatID string `json:"showtimeSeatId,omitempty"`
}

// Reply is a server frame addressed to one session only.
type Reply struct {
	Type           string `json:"type"`
	SessionID      string `json:"sessionId,omitempty"`
	ShowtimeSeatID string `json:"showtimeSeatId,omitempty"`
	Message        string `json:"message,omitempty"`
}
