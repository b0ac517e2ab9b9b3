package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/movie-booking/internal/model"
)

// BookingRepo stores confirmed bookings and their seats.
type BookingRepo struct{ db *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts b inside tx and sets its ID and CreatedAt.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO bookings (reference, user_id, showtime_id, status, total_cents) VALUES (?,?,?,?,?)",
		b.Reference, b.UserID, b.ShowtimeID, b.Status, b.TotalCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return tx.QueryRowContext(ctx, "SELECT created_at FROM bookings WHERE id = ?", b.ID).Scan(&b.CreatedAt)
}

// CreateSeatsTx links the booking to its showtime seats.  A showtime seat can
// belong to one booking only; a second link fails with ErrSeatsUnavailable.
func (r *BookingRepo) CreateSeatsTx(ctx context.Context, tx *sql.Tx, bookingID uint64, showtimeSeatIDs []uint64) error {
	if len(showtimeSeatIDs) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO booking_seats (booking_id, showtime_seat_id) VALUES ")
	args := make([]interface{}, 0, len(showtimeSeatIDs)*2)
	for i, id := range showtimeSeatIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?,?)")
		args = append(args, bookingID, id)
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		if isDuplicate(err) {
			return ErrSeatsUnavailable
		}
		return err
	}
	return nil
}

const bookingDetailQuery = `SELECT b.id, b.reference, b.user_id, b.showtime_id, b.status, b.total_cents, b.created_at,
		m.id, m.title, st.starts_at, sc.name, t.name
	FROM bookings b
	JOIN showtimes st ON st.id = b.showtime_id
	JOIN movies m ON m.id = st.movie_id
	JOIN screens sc ON sc.id = st.screen_id
	JOIN theatres t ON t.id = sc.theatre_id`

// ListByUser returns the user's bookings, newest first, with their seats.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, bookingDetailQuery+" WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC", userID)
	if err != nil {
		return nil, err
	}
	out := []model.BookingDetail{}
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if err := r.attachSeats(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetForUser returns one booking owned by userID.  Bookings of other users
// are reported as ErrBookingNotFound.
func (r *BookingRepo) GetForUser(ctx context.Context, bookingID, userID uint64) (model.BookingDetail, error) {
	d, err := scanBookingDetail(r.db.QueryRowContext(ctx, bookingDetailQuery+" WHERE b.id = ? AND b.user_id = ?", bookingID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.BookingDetail{}, ErrBookingNotFound
	}
	if err != nil {
		return model.BookingDetail{}, err
	}
	list := []model.BookingDetail{d}
	if err := r.attachSeats(ctx, list); err != nil {
		return model.BookingDetail{}, err
	}
	return list[0], nil
}

func (r *BookingRepo) attachSeats(ctx context.Context, list []model.BookingDetail) error {
	if len(list) == 0 {
		return nil
	}
	idx := make(map[uint64]int, len(list))
	args := make([]interface{}, 0, len(list))
	for i := range list {
		list[i].Seats = []model.BookingSeat{}
		idx[list[i].ID] = i
		args = append(args, list[i].ID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT bs.booking_id, bs.showtime_seat_id, s.label
		FROM booking_seats bs
		JOIN showtime_seats ss ON ss.id = bs.showtime_seat_id
		JOIN seats s ON s.id = ss.seat_id
		WHERE bs.booking_id IN (`+placeholders(len(args))+`)
		ORDER BY bs.booking_id, s.row_label, s.seat_number`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bookingID uint64
			seat      model.BookingSeat
		)
		if err := rows.Scan(&bookingID, &seat.ShowtimeSeatID, &seat.SeatLabel); err != nil {
			return err
		}
		if i, ok := idx[bookingID]; ok {
			list[i].Seats = append(list[i].Seats, seat)
		}
	}
	return rows.Err()
}

func scanBookingDetail(s rowScanner) (model.BookingDetail, error) {
	var d model.BookingDetail
	err := s.Scan(&d.ID, &d.Reference, &d.UserID, &d.ShowtimeID, &d.Status, &d.TotalCents, &d.CreatedAt,
		&d.MovieID, &d.MovieTitle, &d.StartsAt, &d.ScreenName, &d.Theatre)
	return d, err
}
