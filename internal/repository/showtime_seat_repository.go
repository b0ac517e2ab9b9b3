package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/movie-booking/internal/model"
)

// ShowtimeSeatRepo is the durable seat registry: the committed state of every
// seat of every showtime.  Provisional locks never reach this table.
type ShowtimeSeatRepo struct{ db *sql.DB }

func NewShowtimeSeatRepo(db *sql.DB) *ShowtimeSeatRepo { return &ShowtimeSeatRepo{db: db} }

// DB exposes the handle so a caller can span one transaction across the
// showtime seat and booking repositories.
func (r *ShowtimeSeatRepo) DB() *sql.DB { return r.db }

// ListByShowtime returns the showtime's seats in row then seat-number order.
// An unknown showtime yields an empty slice.
func (r *ShowtimeSeatRepo) ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.ShowtimeSeat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ss.id, ss.showtime_id, ss.seat_id, s.label, ss.status, ss.booking_id
		FROM showtime_seats ss
		JOIN seats s ON s.id = ss.seat_id
		WHERE ss.showtime_id = ?
		ORDER BY s.row_label, s.seat_number`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ShowtimeSeat{}
	for rows.Next() {
		var (
			ss      model.ShowtimeSeat
			booking sql.NullInt64
		)
		if err := rows.Scan(&ss.ID, &ss.ShowtimeID, &ss.SeatID, &ss.SeatLabel, &ss.Status, &booking); err != nil {
			return nil, err
		}
		if booking.Valid {
			id := uint64(booking.Int64)
			ss.BookingID = &id
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// MarkBookedTx flips every listed seat from available to booked inside tx.
// The update is conditional on the current status, so if any seat is already
// booked, or is not a seat of the showtime, fewer rows change and
// ErrSeatsUnavailable is returned; the caller must then roll back.
func (r *ShowtimeSeatRepo) MarkBookedTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64, bookingID *uint64) error {
	if len(seatIDs) == 0 {
		return ErrSeatsUnavailable
	}
	args := make([]interface{}, 0, len(seatIDs)+4)
	args = append(args, model.SeatBooked, bookingID, showtimeID, model.SeatAvailable)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE showtime_seats SET status = ?, booking_id = ? WHERE showtime_id = ? AND status = ? AND id IN ("+placeholders(len(seatIDs))+")",
		args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(seatIDs)) {
		return ErrSeatsUnavailable
	}
	return nil
}

// MarkBooked is MarkBookedTx in its own transaction, without a booking.
func (r *ShowtimeSeatRepo) MarkBooked(ctx context.Context, showtimeID uint64, seatIDs []uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := r.MarkBookedTx(ctx, tx, showtimeID, seatIDs, nil); err != nil {
		return err
	}
	return tx.Commit()
}
