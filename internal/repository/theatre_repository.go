package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/movie-booking/internal/model"
)

// TheatreRepo manages theatres, their screens and the physical seats of each
// screen.
type TheatreRepo struct{ db *sql.DB }

func NewTheatreRepo(db *sql.DB) *TheatreRepo { return &TheatreRepo{db: db} }

// MaxScreenRows bounds the seat grid so row labels stay single letters.
const MaxScreenRows = 26

// Create inserts a theatre and sets its ID and timestamps.
func (r *TheatreRepo) Create(ctx context.Context, t *model.Theatre) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO theatres (name, city, address) VALUES (?,?,?)",
		strings.TrimSpace(t.Name), strings.TrimSpace(t.City), strings.TrimSpace(t.Address))
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return r.db.QueryRowContext(ctx, "SELECT created_at FROM theatres WHERE id = ?", t.ID).Scan(&t.CreatedAt)
}

// List returns every theatre ordered by name.
func (r *TheatreRepo) List(ctx context.Context) ([]model.Theatre, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, city, address, created_at FROM theatres ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Theatre{}
	for rows.Next() {
		var t model.Theatre
		if err := rows.Scan(&t.ID, &t.Name, &t.City, &t.Address, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByID returns a theatre or ErrTheatreNotFound.
func (r *TheatreRepo) GetByID(ctx context.Context, id uint64) (model.Theatre, error) {
	var t model.Theatre
	err := r.db.QueryRowContext(ctx, "SELECT id, name, city, address, created_at FROM theatres WHERE id = ?", id).
		Scan(&t.ID, &t.Name, &t.City, &t.Address, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Theatre{}, ErrTheatreNotFound
	}
	return t, err
}

// CreateScreen inserts a screen and its rows x cols seat grid in one
// transaction.  Rows are labelled A, B, C ... and seats numbered from 1, so
// the third seat of the first row is "A3".
func (r *TheatreRepo) CreateScreen(ctx context.Context, s *model.Screen) error {
	if s.SeatRows < 1 || s.SeatRows > MaxScreenRows || s.SeatCols < 1 {
		return fmt.Errorf("invalid seat grid %dx%d", s.SeatRows, s.SeatCols)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO screens (theatre_id, name, seat_rows, seat_cols) VALUES (?,?,?,?)",
		s.TheatreID, strings.TrimSpace(s.Name), s.SeatRows, s.SeatCols)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrConflict
		case isForeignKey(err):
			return ErrTheatreNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	if err := r.createSeatsTx(ctx, tx, GridSeats(s.ID, s.SeatRows, s.SeatCols)); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, "SELECT created_at FROM screens WHERE id = ?", s.ID).Scan(&s.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// ListScreens returns the screens of a theatre.
func (r *TheatreRepo) ListScreens(ctx context.Context, theatreID uint64) ([]model.Screen, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, theatre_id, name, seat_rows, seat_cols, created_at FROM screens WHERE theatre_id = ? ORDER BY name, id",
		theatreID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Screen{}
	for rows.Next() {
		var s model.Screen
		if err := rows.Scan(&s.ID, &s.TheatreID, &s.Name, &s.SeatRows, &s.SeatCols, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListAllScreens returns every screen with its theatre's name, ordered by
// theatre then screen name.
func (r *TheatreRepo) ListAllScreens(ctx context.Context) ([]model.Screen, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT sc.id, sc.theatre_id, sc.name, sc.seat_rows, sc.seat_cols, sc.created_at, t.name
FROM screens sc
JOIN theatres t ON t.id = sc.theatre_id
ORDER BY t.name, sc.name, sc.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Screen{}
	for rows.Next() {
		var s model.Screen
		if err := rows.Scan(&s.ID, &s.TheatreID, &s.Name, &s.SeatRows, &s.SeatCols, &s.CreatedAt, &s.TheatreName); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetScreen returns a screen or ErrScreenNotFound.
func (r *TheatreRepo) GetScreen(ctx context.Context, id uint64) (model.Screen, error) {
	var s model.Screen
	err := r.db.QueryRowContext(ctx,
		"SELECT id, theatre_id, name, seat_rows, seat_cols, created_at FROM screens WHERE id = ?", id).
		Scan(&s.ID, &s.TheatreID, &s.Name, &s.SeatRows, &s.SeatCols, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Screen{}, ErrScreenNotFound
	}
	return s, err
}

// GridSeats lays out a rows x cols grid for a screen.
func GridSeats(screenID uint64, rows, cols int) []model.Seat {
	out := make([]model.Seat, 0, rows*cols)
	for r := 0; r < rows; r++ {
		row := string(rune('A' + r))
		for c := 1; c <= cols; c++ {
			out = append(out, model.Seat{
				ScreenID:   screenID,
				RowLabel:   row,
				SeatNumber: c,
				Label:      fmt.Sprintf("%s%d", row, c),
			})
		}
	}
	return out
}

func (r *TheatreRepo) createSeatsTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO seats (screen_id, row_label, seat_number, label) VALUES ")
	args := make([]interface{}, 0, len(seats)*4)
	for i, s := range seats {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?,?,?,?)")
		args = append(args, s.ScreenID, s.RowLabel, s.SeatNumber, s.Label)
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}
