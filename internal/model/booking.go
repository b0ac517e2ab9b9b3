package model

import "time"

// BookingConfirmed is the only status written by the booking flow;
// BookingCancelled is reserved for refunds.
const (
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking groups the seats a user bought for one showtime.  Reference is a
// public uuid suitable for tickets and emails.
type Booking struct {
	ID         uint64        `json:"id"`
	Reference  string        `json:"reference"`
	UserID     uint64        `json:"userId"`
	ShowtimeID uint64        `json:"showtimeId"`
	Status     string        `json:"status"`
	TotalCents uint32        `json:"totalCents"`
	CreatedAt  time.Time     `json:"createdAt"`
	Seats      []BookingSeat `json:"seats"`
}

// BookingSeat is one seat of a booking.
type BookingSeat struct {
	ShowtimeSeatID uint64 `json:"showtimeSeatId"`
	SeatLabel      string `json:"seatLabel"`
}

// BookingDetail adds the showtime and movie context shown in booking history.
type BookingDetail struct {
	Booking
	MovieID    uint64    `json:"movieId"`
	MovieTitle string    `json:"movieTitle"`
	StartsAt   time.Time `json:"startsAt"`
	ScreenName string    `json:"screenName"`
	Theatre    string    `json:"theatre"`
}
