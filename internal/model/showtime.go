package model

import "time"

// Showtime is one screening of a movie on a screen.
type Showtime struct {
	ID         uint64    `json:"id"`
	MovieID    uint64    `json:"movieId"`
	ScreenID   uint64    `json:"screenId"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
	PriceCents uint32    `json:"priceCents"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ShowtimeDetail is a showtime joined with what an admin needs to manage it:
// the movie, the screen and theatre it plays in, and how full it is.
type ShowtimeDetail struct {
	Showtime
	MovieTitle  string `json:"movieTitle"`
	ScreenName  string `json:"screenName"`
	TheatreID   uint64 `json:"theatreId"`
	TheatreName string `json:"theatreName"`
	SeatsTotal  int    `json:"seatsTotal"`
	SeatsBooked int    `json:"seatsBooked"`
}

// Committed showtime seat states.  Locks are never persisted.
const (
	SeatAvailable = "available"
	SeatBooked    = "booked"
)

// ShowtimeSeat is the durable state of one seat for one showtime.
type ShowtimeSeat struct {
	ID         uint64  `json:"id"`
	ShowtimeID uint64  `json:"showtimeId"`
	SeatID     uint64  `json:"seatId"`
	SeatLabel  string  `json:"seatLabel"`
	Status     string  `json:"status"`
	BookingID  *uint64 `json:"bookingId,omitempty"`
}
