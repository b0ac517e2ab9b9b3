package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/seatlock"
)

// ShowtimeSeatStore is the part of the showtime seat repository backing the
// seat registry.
type ShowtimeSeatStore interface {
	ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.ShowtimeSeat, error)
	MarkBooked(ctx context.Context, showtimeID uint64, seatIDs []uint64) error
}

// SeatRegistry adapts the showtime seat table to seatlock.SeatRegistry.  The
// lock core works with opaque string ids; the database with integers.
type SeatRegistry struct {
	store ShowtimeSeatStore
}

func NewSeatRegistry(store ShowtimeSeatStore) *SeatRegistry {
	return &SeatRegistry{store: store}
}

// ShowtimeSeats returns the committed seats of a showtime.  A malformed id is
// reported as an empty showtime, which the coordinator treats as unknown.
func (r *SeatRegistry) ShowtimeSeats(ctx context.Context, showtimeID string) ([]seatlock.RegistrySeat, error) {
	id, err := strconv.ParseUint(showtimeID, 10, 64)
	if err != nil {
		return nil, nil
	}
	seats, err := r.store.ListByShowtime(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]seatlock.RegistrySeat, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatlock.RegistrySeat{
			ShowtimeSeatID: FormatID(s.ID),
			SeatLabel:      s.SeatLabel,
			Status:         committedStatus(s.Status),
		})
	}
	return out, nil
}

// MarkBooked books the seats without a booking record.
func (r *SeatRegistry) MarkBooked(ctx context.Context, showtimeID string, seatIDs []string) error {
	id, err := strconv.ParseUint(showtimeID, 10, 64)
	if err != nil {
		return fmt.Errorf("showtime id %q: %w", showtimeID, err)
	}
	ids, err := ParseIDs(seatIDs)
	if err != nil {
		return err
	}
	return r.store.MarkBooked(ctx, id, ids)
}

func committedStatus(s string) seatlock.CommittedStatus {
	if s == model.SeatBooked {
		return seatlock.CommittedBooked
	}
	return seatlock.CommittedAvailable
}

// FormatID renders a database id the way the lock core and the websocket
// protocol see it.
func FormatID(id uint64) string { return strconv.FormatUint(id, 10) }

// FormatIDs is FormatID over a slice.
func FormatIDs(ids []uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = FormatID(id)
	}
	return out
}

// ParseIDs converts string ids back to database ids.
func ParseIDs(ids []string) ([]uint64, error) {
	out := make([]uint64, len(ids))
	for i, s := range ids {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("seat id %q: %w", s, err)
		}
		out[i] = id
	}
	return out, nil
}
