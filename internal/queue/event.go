// Package queue defines the booking.confirmed message and the consumer that
// records confirmed bookings in an append-only log.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// BookingQueue is the durable queue confirmed bookings are published to.
const BookingQueue = "booking.confirmed"

// BookingConfirmedEvent carries enough of a confirmed booking for downstream
// consumers to log or notify without reading the primary database.
type BookingConfirmedEvent struct {
	BookingID   uint64    `json:"booking_id"`
	Reference   string    `json:"reference"`
	UserID      uint64    `json:"user_id"`
	ShowtimeID  uint64    `json:"showtime_id"`
	MovieTitle  string    `json:"movie_title"`
	StartsAt    time.Time `json:"starts_at"`
	SeatLabels  []string  `json:"seats"`
	TotalCents  uint32    `json:"total_cents"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// LogLine renders the event as one line of the booking log.
func (ev BookingConfirmedEvent) LogLine() string {
	return fmt.Sprintf("[%s] Booking confirmed | ref=%s | booking_id=%d | user_id=%d | showtime_id=%d | movie=%q | starts_at=%s | total=%d cents | seats=[%s]\n",
		ev.ConfirmedAt.UTC().Format(time.RFC3339), ev.Reference, ev.BookingID, ev.UserID, ev.ShowtimeID,
		ev.MovieTitle, ev.StartsAt.UTC().Format(time.RFC3339), ev.TotalCents, strings.Join(ev.SeatLabels, ","))
}
