package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/movie-booking/internal/model"
)

// ShowtimeRepo manages showtimes.  Creating a showtime also creates one
// available showtime seat per physical seat of its screen.
type ShowtimeRepo struct{ db *sql.DB }

func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

const showtimeColumns = "id, movie_id, screen_id, starts_at, ends_at, price_cents, created_at"

// Create inserts st and its showtime seats in one transaction.  EndsAt is
// derived from the movie's duration.
func (r *ShowtimeRepo) Create(ctx context.Context, st *model.Showtime) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var duration int
	err = tx.QueryRowContext(ctx, "SELECT duration_min FROM movies WHERE id = ?", st.MovieID).Scan(&duration)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMovieNotFound
	}
	if err != nil {
		return err
	}
	var seatCount int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM seats WHERE screen_id = ?", st.ScreenID).Scan(&seatCount); err != nil {
		return err
	}
	if seatCount == 0 {
		return ErrScreenNotFound
	}

	st.StartsAt = st.StartsAt.UTC()
	st.EndsAt = st.StartsAt.Add(time.Duration(duration) * time.Minute)
	res, err := tx.ExecContext(ctx,
		"INSERT INTO showtimes (movie_id, screen_id, starts_at, ends_at, price_cents) VALUES (?,?,?,?,?)",
		st.MovieID, st.ScreenID, st.StartsAt, st.EndsAt, st.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO showtime_seats (showtime_id, seat_id, status) SELECT ?, id, ? FROM seats WHERE screen_id = ?",
		st.ID, model.SeatAvailable, st.ScreenID); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, "SELECT created_at FROM showtimes WHERE id = ?", st.ID).Scan(&st.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns a showtime or ErrShowtimeNotFound.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (model.Showtime, error) {
	st, err := scanShowtime(r.db.QueryRowContext(ctx, "SELECT "+showtimeColumns+" FROM showtimes WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Showtime{}, ErrShowtimeNotFound
	}
	return st, err
}

// ListByMovie returns the movie's showtimes starting at or after from, in
// start order.
func (r *ShowtimeRepo) ListByMovie(ctx context.Context, movieID uint64, from time.Time) ([]model.Showtime, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+showtimeColumns+" FROM showtimes WHERE movie_id = ? AND starts_at >= ? ORDER BY starts_at, id",
		movieID, from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Showtime{}
	for rows.Next() {
		st, err := scanShowtime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListDetailed returns every showtime starting at or after from with its
// movie, screen, theatre and seat counts, in start order.  A zero from lists
// all of them.
func (r *ShowtimeRepo) ListDetailed(ctx context.Context, from time.Time) ([]model.ShowtimeDetail, error) {
	query := `
SELECT st.id, st.movie_id, st.screen_id, st.starts_at, st.ends_at, st.price_cents, st.created_at,
       m.title, sc.name, t.id, t.name,
       (SELECT COUNT(*) FROM showtime_seats ss WHERE ss.showtime_id = st.id),
       (SELECT COUNT(*) FROM showtime_seats ss WHERE ss.showtime_id = st.id AND ss.status = 'booked')
FROM showtimes st
JOIN movies m    ON m.id = st.movie_id
JOIN screens sc  ON sc.id = st.screen_id
JOIN theatres t  ON t.id = sc.theatre_id`
	var args []interface{}
	if !from.IsZero() {
		query += "\nWHERE st.starts_at >= ?"
		args = append(args, from.UTC())
	}
	query += "\nORDER BY st.starts_at, st.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ShowtimeDetail{}
	for rows.Next() {
		var d model.ShowtimeDetail
		if err := rows.Scan(&d.ID, &d.MovieID, &d.ScreenID, &d.StartsAt, &d.EndsAt, &d.PriceCents, &d.CreatedAt,
			&d.MovieTitle, &d.ScreenName, &d.TheatreID, &d.TheatreName, &d.SeatsTotal, &d.SeatsBooked); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountStarting returns how many showtimes start in [from, to).
func (r *ShowtimeRepo) CountStarting(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM showtimes WHERE starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).Scan(&n)
	return n, err
}

// Delete removes a showtime and its showtime seats.  A showtime with
// bookings cannot be deleted and yields ErrConflict.
func (r *ShowtimeRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM showtimes WHERE id = ?", id)
	if err != nil {
		if isForeignKey(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrShowtimeNotFound
	}
	return nil
}

func scanShowtime(s rowScanner) (model.Showtime, error) {
	var st model.Showtime
	err := s.Scan(&st.ID, &st.MovieID, &st.ScreenID, &st.StartsAt, &st.EndsAt, &st.PriceCents, &st.CreatedAt)
	return st, err
}
