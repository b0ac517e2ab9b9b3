// Package service holds the booking flow that turns provisional seat locks
// into durable bookings, the seat registry adapter used by the lock core, and
// the RabbitMQ publisher for booking events.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/queue"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/seatlock"
)

var (
	// ErrSeatsNoLongerAvailable is the single outcome reported to a buyer
	// whose commit failed, whatever the cause: expired locks, a lost race
	// or a seat already sold.
	ErrSeatsNoLongerAvailable = errors.New("your seats are no longer available")

	// ErrSessionNotOwned is returned when the realtime session named in a
	// booking belongs to a different user.
	ErrSessionNotOwned = errors.New("session belongs to another user")

	// ErrInvalidBooking covers requests with no seats or repeated seats.
	ErrInvalidBooking = errors.New("invalid booking request")
)

// SeatCommitter is the part of the lock coordinator the finalizer drives.
type SeatCommitter interface {
	SessionUser(sessionID string) (string, bool)
	Commit(ctx context.Context, showtimeID string, seatIDs []string, sessionID string, persist seatlock.PersistFunc) error
}

// BookingRequest is a buyer's request to purchase the seats their realtime
// session holds.
type BookingRequest struct {
	UserID          uint64
	ShowtimeID      uint64
	ShowtimeSeatIDs []uint64
	SessionID       string
}

// BookingFinalizer commits held seats as a booking.  The durable write is a
// single MySQL transaction executed while the coordinator keeps the locks
// pinned, so either every seat is booked and announced or nothing changes.
type BookingFinalizer struct {
	db        *sql.DB
	locks     SeatCommitter
	showtimes *repository.ShowtimeRepo
	seats     *repository.ShowtimeSeatRepo
	bookings  *repository.BookingRepo
	movies    *repository.MovieRepo
	publisher EventPublisher
	log       *zap.Logger

	now    func() time.Time
	newRef func() string
}

func NewBookingFinalizer(db *sql.DB, locks SeatCommitter, publisher EventPublisher, log *zap.Logger) *BookingFinalizer {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingFinalizer{
		db:        db,
		locks:     locks,
		showtimes: repository.NewShowtimeRepo(db),
		seats:     repository.NewShowtimeSeatRepo(db),
		bookings:  repository.NewBookingRepo(db),
		movies:    repository.NewMovieRepo(db),
		publisher: publisher,
		log:       log.Named("booking"),
		now:       func() time.Time { return time.Now().UTC() },
		newRef:    func() string { return uuid.NewString() },
	}
}

// Book purchases req.ShowtimeSeatIDs.  The session must belong to the user
// and hold active locks on exactly those seats.
func (f *BookingFinalizer) Book(ctx context.Context, req BookingRequest) (model.Booking, error) {
	if len(req.ShowtimeSeatIDs) == 0 || hasDuplicates(req.ShowtimeSeatIDs) {
		return model.Booking{}, ErrInvalidBooking
	}
	owner, ok := f.locks.SessionUser(req.SessionID)
	if !ok {
		// the session is gone and so are its locks
		return model.Booking{}, ErrSeatsNoLongerAvailable
	}
	if owner != strconv.FormatUint(req.UserID, 10) {
		return model.Booking{}, ErrSessionNotOwned
	}

	st, err := f.showtimes.GetByID(ctx, req.ShowtimeID)
	if err != nil {
		return model.Booking{}, err
	}
	labels, err := f.seatLabels(ctx, req.ShowtimeID)
	if err != nil {
		return model.Booking{}, err
	}

	booking := model.Booking{
		Reference:  f.newRef(),
		UserID:     req.UserID,
		ShowtimeID: req.ShowtimeID,
		Status:     model.BookingConfirmed,
		TotalCents: st.PriceCents * uint32(len(req.ShowtimeSeatIDs)),
	}
	for _, id := range req.ShowtimeSeatIDs {
		booking.Seats = append(booking.Seats, model.BookingSeat{ShowtimeSeatID: id, SeatLabel: labels[id]})
	}

	persist := func(ctx context.Context) error { return f.persist(ctx, &booking, req.ShowtimeSeatIDs) }
	err = f.locks.Commit(ctx, FormatID(req.ShowtimeID), FormatIDs(req.ShowtimeSeatIDs), req.SessionID, persist)
	switch {
	case err == nil:
	case errors.Is(err, seatlock.ErrCommitRejected), errors.Is(err, repository.ErrSeatsUnavailable):
		f.log.Info("booking refused",
			zap.Uint64("user_id", req.UserID),
			zap.Uint64("showtime_id", req.ShowtimeID),
			zap.Error(err))
		return model.Booking{}, ErrSeatsNoLongerAvailable
	default:
		return model.Booking{}, fmt.Errorf("commit booking: %w", err)
	}

	f.log.Info("booking confirmed",
		zap.Uint64("booking_id", booking.ID),
		zap.String("reference", booking.Reference),
		zap.Uint64("user_id", booking.UserID),
		zap.Int("seats", len(booking.Seats)))
	f.announce(ctx, booking, st)
	return booking, nil
}

func (f *BookingFinalizer) persist(ctx context.Context, b *model.Booking, seatIDs []uint64) error {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := f.bookings.CreateTx(ctx, tx, b); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if err := f.seats.MarkBookedTx(ctx, tx, b.ShowtimeID, seatIDs, &b.ID); err != nil {
		return err
	}
	if err := f.bookings.CreateSeatsTx(ctx, tx, b.ID, seatIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (f *BookingFinalizer) seatLabels(ctx context.Context, showtimeID uint64) (map[uint64]string, error) {
	seats, err := f.seats.ListByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]string, len(seats))
	for _, s := range seats {
		out[s.ID] = s.SeatLabel
	}
	return out, nil
}

// announce publishes booking.confirmed.  Failures are logged only.
func (f *BookingFinalizer) announce(ctx context.Context, b model.Booking, st model.Showtime) {
	ev := queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		Reference:   b.Reference,
		UserID:      b.UserID,
		ShowtimeID:  b.ShowtimeID,
		StartsAt:    st.StartsAt,
		TotalCents:  b.TotalCents,
		ConfirmedAt: f.now(),
	}
	for _, s := range b.Seats {
		ev.SeatLabels = append(ev.SeatLabels, s.SeatLabel)
	}
	if m, err := f.movies.GetByID(ctx, st.MovieID); err == nil {
		ev.MovieTitle = m.Title
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := f.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		f.log.Warn("publish booking event failed", zap.String("reference", b.Reference), zap.Error(err))
	}
}

func hasDuplicates(ids []uint64) bool {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
