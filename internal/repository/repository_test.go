package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestShowtimeSeatRepo_MarkBookedTx(t *testing.T) {
	cases := []struct {
		name     string
		affected int64
		want     error
	}{
		{name: "all seats flipped", affected: 2},
		{name: "one seat already booked", affected: 1, want: ErrSeatsUnavailable},
		{name: "none available", affected: 0, want: ErrSeatsUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewShowtimeSeatRepo(db)
			bookingID := uint64(9)

			mock.ExpectBegin()
			mock.ExpectExec(q("UPDATE showtime_seats SET status = ?, booking_id = ? WHERE showtime_id = ? AND status = ? AND id IN (?,?)")).
				WithArgs(model.SeatBooked, bookingID, uint64(7), model.SeatAvailable, uint64(11), uint64(12)).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))
			mock.ExpectRollback()

			tx, err := db.Begin()
			require.NoError(t, err)
			err = repo.MarkBookedTx(context.Background(), tx, 7, []uint64{11, 12}, &bookingID)
			require.NoError(t, tx.Rollback())
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestShowtimeSeatRepo_MarkBookedCommits(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowtimeSeatRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE showtime_seats SET status")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkBooked(context.Background(), 7, []uint64{11}))
}

func TestShowtimeSeatRepo_ListByShowtime(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowtimeSeatRepo(db)

	rows := sqlmock.NewRows([]string{"id", "showtime_id", "seat_id", "label", "status", "booking_id"}).
		AddRow(11, 7, 1, "A1", "available", nil).
		AddRow(12, 7, 2, "A2", "booked", 3)
	mock.ExpectQuery(q("FROM showtime_seats ss")).WithArgs(uint64(7)).WillReturnRows(rows)

	seats, err := repo.ListByShowtime(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "A1", seats[0].SeatLabel)
	assert.Nil(t, seats[0].BookingID)
	require.NotNil(t, seats[1].BookingID)
	assert.Equal(t, uint64(3), *seats[1].BookingID)
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(q("INSERT INTO users")).
		WithArgs("Ada", "ada@example.com", sqlmock.AnyArg(), model.RoleCustomer).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.Create(context.Background(), " Ada ", " ADA@example.com ", "pw123456", model.RoleCustomer, 4)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_GetByEmailNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	mock.ExpectQuery(q("FROM users WHERE email=?")).WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "Nobody@Example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTokenRepo_ValidateRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"user_id", "expires_at", "revoked_at"}
	cases := []struct {
		name    string
		rows    *sqlmock.Rows
		wantID  uint64
		wantErr error
	}{
		{name: "live", rows: sqlmock.NewRows(cols).AddRow(5, now.Add(time.Hour), nil), wantID: 5},
		{name: "expired", rows: sqlmock.NewRows(cols).AddRow(5, now, nil), wantErr: ErrInvalidRefresh},
		{name: "revoked", rows: sqlmock.NewRows(cols).AddRow(5, now.Add(time.Hour), now.Add(-time.Hour)), wantErr: ErrInvalidRefresh},
		{name: "unknown", rows: sqlmock.NewRows(cols), wantErr: ErrInvalidRefresh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(q("FROM refresh_tokens WHERE token_hash=?")).WithArgs("h").WillReturnRows(tc.rows)

			id, err := NewTokenRepo(db).ValidateRefresh(context.Background(), "h", now)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, id)
		})
	}
}

func TestMovieRepo_ListFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMovieRepo(db)
	release := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "director", "cast_json", "genres_json",
		"release_date", "duration_min", "rating", "imdb_rating", "trailer_url", "poster_url", "poster_home_url",
		"created_at", "updated_at"}).
		AddRow(1, "Dune", "desc", "Villeneuve", `["Zendaya"]`, `["Sci-Fi","Drama"]`,
			release, 155, "PG-13", 8.1, "", "p.jpg", "ph.jpg", release, release)
	mock.ExpectQuery(q("WHERE title LIKE ? AND JSON_CONTAINS(genres_json, JSON_QUOTE(?)) ORDER BY release_date DESC, id DESC LIMIT ? OFFSET ?")).
		WithArgs(`%50\%%`, "Sci-Fi", 10, 0).
		WillReturnRows(rows)

	movies, err := repo.List(context.Background(), MovieFilter{Query: "50%", Genre: "Sci-Fi", Limit: 10})
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, []string{"Zendaya"}, movies[0].Cast)
	assert.Equal(t, []string{"Sci-Fi", "Drama"}, movies[0].Genres)
	require.NotNil(t, movies[0].IMDBRating)
	assert.InDelta(t, 8.1, *movies[0].IMDBRating, 1e-9)
}

func TestMovieRepo_DeleteWithBookings(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("DELETE FROM movies WHERE id = ?")).WithArgs(uint64(3)).
		WillReturnError(&mysql.MySQLError{Number: 1451})

	assert.ErrorIs(t, NewMovieRepo(db).Delete(context.Background(), 3), ErrConflict)
}

func TestMovieRepo_UpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE movies SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT 1 FROM movies WHERE id = ?")).WithArgs(uint64(3)).WillReturnError(sql.ErrNoRows)

	err := NewMovieRepo(db).Update(context.Background(), &model.Movie{ID: 3, Title: "x"})
	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestGridSeats(t *testing.T) {
	seats := GridSeats(4, 2, 3)
	require.Len(t, seats, 6)
	labels := make([]string, 0, len(seats))
	for _, s := range seats {
		labels = append(labels, s.Label)
		assert.Equal(t, uint64(4), s.ScreenID)
	}
	assert.Equal(t, []string{"A1", "A2", "A3", "B1", "B2", "B3"}, labels)
}

func TestTheatreRepo_CreateScreen(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO screens")).WithArgs(uint64(2), "Hall 1", 2, 2).WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec(q("INSERT INTO seats (screen_id, row_label, seat_number, label) VALUES (?,?,?,?),(?,?,?,?),(?,?,?,?),(?,?,?,?)")).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectQuery(q("SELECT created_at FROM screens")).WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectCommit()

	s := &model.Screen{TheatreID: 2, Name: " Hall 1 ", SeatRows: 2, SeatCols: 2}
	require.NoError(t, NewTheatreRepo(db).CreateScreen(context.Background(), s))
	assert.Equal(t, uint64(8), s.ID)
	assert.Equal(t, created, s.CreatedAt)
}

func TestTheatreRepo_CreateScreenRejectsBadGrid(t *testing.T) {
	db, _ := newMock(t)
	err := NewTheatreRepo(db).CreateScreen(context.Background(), &model.Screen{TheatreID: 1, SeatRows: 27, SeatCols: 1})
	assert.Error(t, err)
}

func TestShowtimeRepo_CreateUnknownMovie(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT duration_min FROM movies")).WithArgs(uint64(1)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := NewShowtimeRepo(db).Create(context.Background(), &model.Showtime{MovieID: 1, ScreenID: 2})
	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestShowtimeRepo_CreateGeneratesSeats(t *testing.T) {
	db, mock := newMock(t)
	start := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT duration_min FROM movies")).WillReturnRows(sqlmock.NewRows([]string{"duration_min"}).AddRow(120))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM seats")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(40))
	mock.ExpectExec(q("INSERT INTO showtimes")).
		WithArgs(uint64(1), uint64(2), start, start.Add(2*time.Hour), uint32(900)).
		WillReturnResult(sqlmock.NewResult(33, 1))
	mock.ExpectExec(q("INSERT INTO showtime_seats (showtime_id, seat_id, status) SELECT ?, id, ? FROM seats WHERE screen_id = ?")).
		WithArgs(uint64(33), model.SeatAvailable, uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 40))
	mock.ExpectQuery(q("SELECT created_at FROM showtimes")).WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(start))
	mock.ExpectCommit()

	st := &model.Showtime{MovieID: 1, ScreenID: 2, StartsAt: start, PriceCents: 900}
	require.NoError(t, NewShowtimeRepo(db).Create(context.Background(), st))
	assert.Equal(t, uint64(33), st.ID)
	assert.Equal(t, start.Add(2*time.Hour), st.EndsAt)
}

func TestBookingRepo_CreateSeatsDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO booking_seats (booking_id, showtime_seat_id) VALUES (?,?),(?,?)")).
		WithArgs(uint64(1), uint64(11), uint64(1), uint64(12)).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = NewBookingRepo(db).CreateSeatsTx(context.Background(), tx, 1, []uint64{11, 12})
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	require.NoError(t, tx.Rollback())
}

func TestBookingRepo_ListByUser(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("WHERE b.user_id = ?")).WithArgs(uint64(5)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "reference", "user_id", "showtime_id", "status", "total_cents", "created_at",
			"movie_id", "title", "starts_at", "screen", "theatre"}).
			AddRow(2, "ref-2", 5, 7, "CONFIRMED", 1800, at, 1, "Dune", at, "Hall 1", "Downtown").
			AddRow(1, "ref-1", 5, 7, "CONFIRMED", 900, at, 1, "Dune", at, "Hall 1", "Downtown"))
	mock.ExpectQuery(q("FROM booking_seats bs")).WithArgs(uint64(2), uint64(1)).WillReturnRows(
		sqlmock.NewRows([]string{"booking_id", "showtime_seat_id", "label"}).
			AddRow(1, 10, "A1").
			AddRow(2, 11, "B3").
			AddRow(2, 12, "B4"))

	list, err := NewBookingRepo(db).ListByUser(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []model.BookingSeat{{ShowtimeSeatID: 11, SeatLabel: "B3"}, {ShowtimeSeatID: 12, SeatLabel: "B4"}}, list[0].Seats)
	assert.Equal(t, []model.BookingSeat{{ShowtimeSeatID: 10, SeatLabel: "A1"}}, list[1].Seats)
	assert.Equal(t, "Downtown", list[0].Theatre)
}

func TestBookingRepo_GetForUserNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("WHERE b.id = ? AND b.user_id = ?")).WithArgs(uint64(9), uint64(5)).WillReturnError(sql.ErrNoRows)

	_, err := NewBookingRepo(db).GetForUser(context.Background(), 9, 5)
	assert.True(t, errors.Is(err, ErrBookingNotFound))
}

func TestShowtimeRepo_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewShowtimeRepo(db)
	del := q("DELETE FROM showtimes WHERE id = ?")

	mock.ExpectExec(del).WithArgs(uint64(1)).WillReturnError(&mysql.MySQLError{Number: 1451})
	assert.ErrorIs(t, repo.Delete(context.Background(), 1), ErrConflict)

	mock.ExpectExec(del).WithArgs(uint64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrShowtimeNotFound)

	mock.ExpectExec(del).WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(context.Background(), 3))
}

func TestShowtimeRepo_ListDetailedFrom(t *testing.T) {
	db, mock := newMock(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("WHERE st.starts_at >= ?")).WithArgs(from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "screen_id", "starts_at", "ends_at", "price_cents", "created_at",
			"title", "screen", "theatre_id", "theatre", "total", "booked"}))

	items, err := NewShowtimeRepo(db).ListDetailed(context.Background(), from)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
