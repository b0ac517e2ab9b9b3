package seatlock

// EventType names a message pushed to realtime sessions.  The values are the
// wire "type" field.
type EventType string

const (
	EventSeatLocked   EventType = "seat_locked"
	EventSeatReleased EventType = "seat_unlocked"
	EventSeatBooked   EventType = "seat_booked"
	EventSeatSnapshot EventType = "seat_snapshot"

	// EventShowtimeClosed tells a room its showtime was removed.  It is the
	// last event the room receives.
	EventShowtimeClosed EventType = "showtime_closed"
)

// SeatStatus is the derived per-seat state shown to a particular session.
type SeatStatus string

const (
	StatusAvailable SeatStatus = "available"
	StatusLocked    SeatStatus = "locked"   // held by another session
	StatusSelected  SeatStatus = "selected" // held by the viewing session
	StatusBooked    SeatStatus = "booked"
)

// CommittedStatus is the durable state of a showtime seat.
type CommittedStatus string

const (
	CommittedAvailable CommittedStatus = "available"
	CommittedBooked    CommittedStatus = "booked"
)

// SeatView is one entry of a seat snapshot.
type SeatView struct {
	ShowtimeSeatID string     `json:"showtimeSeatId"`
	SeatLabel      string     `json:"seatLabel"`
	Status         SeatStatus `json:"status"`
}

// Event is delivered to every subscriber of a showtime room.  Seat events
// carry only the seat id; the snapshot event carries the showtime id and the
// full seat list and is delivered to the joining session alone.
type Event struct {
	Type           EventType  `json:"type"`
	ShowtimeID     string     `json:"showtimeId,omitempty"`
	ShowtimeSeatID string     `json:"showtimeSeatId,omitempty"`
	Seats          []SeatView `json:"seats,omitempty"`
}

func seatEvent(t EventType, seatID string) Event {
	return Event{Type: t, ShowtimeSeatID: seatID}
}
