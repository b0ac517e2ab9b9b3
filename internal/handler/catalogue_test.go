package handler

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/seatlock"
)

func newMovieServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	h := NewMovieHandler(repository.NewMovieRepo(db), nil)
	e := echo.New()
	e.GET("/movies", h.List)
	e.GET("/movies/:id", h.Get)
	e.POST("/movies", h.Create)
	e.DELETE("/movies/:id", h.Delete)
	return e, mock
}

func TestMovieCreate(t *testing.T) {
	e, mock := newMovieServer(t)

	rec := call(t, e, http.MethodPost, "/movies", `{"title":"Dune","durationMin":155,"releaseDate":"21/10/2021"}`, 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"releaseDate must be YYYY-MM-DD"}`, rec.Body.String())

	rec = call(t, e, http.MethodPost, "/movies", `{"title":"Dune","durationMin":0,"releaseDate":"2021-10-21"}`, 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO movies")).
		WithArgs("Dune", "", "Denis", `["Zendaya"]`, `["Sci-Fi"]`, time.Date(2021, 10, 21, 0, 0, 0, 0, time.UTC),
			155, "", nil, "", "", "").
		WillReturnResult(sqlmock.NewResult(4, 1))
	rec = call(t, e, http.MethodPost, "/movies",
		`{"title":" Dune ","director":"Denis","cast":["Zendaya"," "],"genres":["Sci-Fi"],"durationMin":155,"releaseDate":"2021-10-21"}`, 0, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"id":4`)
}

func TestMovieGetAndDelete(t *testing.T) {
	e, mock := newMovieServer(t)

	rec := call(t, e, http.MethodGet, "/movies/abc", "", 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.ExpectQuery(regexp.QuoteMeta("FROM movies WHERE id = ?")).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rec = call(t, e, http.MethodGet, "/movies/9", "", 0, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies")).WithArgs(uint64(9)).
		WillReturnError(&mysql.MySQLError{Number: 1451, Message: "Cannot delete"})
	rec = call(t, e, http.MethodDelete, "/movies/9", "", 0, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM movies")).WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rec = call(t, e, http.MethodDelete, "/movies/9", "", 0, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMovieList(t *testing.T) {
	e, mock := newMovieServer(t)

	rec := call(t, e, http.MethodGet, "/movies?limit=0", "", 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE title LIKE ?")).WithArgs("%dun%", 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rec = call(t, e, http.MethodGet, "/movies?q=dun&limit=500", "", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"limit":100,"offset":0}`, rec.Body.String())
}

func TestScreenCreateValidation(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewTheatreHandler(repository.NewTheatreRepo(db), nil)
	e := echo.New()
	e.POST("/theatres/:id/screens", h.CreateScreen)

	rec := call(t, e, http.MethodPost, "/theatres/1/screens", `{"name":"Hall 1","rows":27,"cols":10}`, 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO screens")).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "foreign key"})
	mock.ExpectRollback()
	rec = call(t, e, http.MethodPost, "/theatres/1/screens", `{"name":"Hall 1","rows":2,"cols":3}`, 0, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"theatre not found"}`, rec.Body.String())
}

type fakeSeatMap struct {
	seats  []seatlock.SeatView
	gotID  string
	gotSS  string
	closed []string
}

func (f *fakeSeatMap) CloseRoom(showtimeID string) int {
	f.closed = append(f.closed, showtimeID)
	return 2
}

func (f *fakeSeatMap) Snapshot(_ context.Context, showtimeID, sessionID string) ([]seatlock.SeatView, error) {
	f.gotID, f.gotSS = showtimeID, sessionID
	if f.seats == nil {
		return nil, seatlock.ErrUnknownShowtime
	}
	return f.seats, nil
}

func TestShowtimeSeats(t *testing.T) {
	db, _ := newMockDB(t)
	seats := &fakeSeatMap{}
	h := NewShowtimeHandler(repository.NewShowtimeRepo(db), seats, nil)
	e := echo.New()
	e.GET("/showtimes/:id/seats", h.Seats)

	rec := call(t, e, http.MethodGet, "/showtimes/5/seats", "", 0, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seats.seats = []seatlock.SeatView{
		{ShowtimeSeatID: "50", SeatLabel: "A1", Status: seatlock.StatusSelected},
		{ShowtimeSeatID: "51", SeatLabel: "A2", Status: seatlock.StatusBooked},
	}
	rec = call(t, e, http.MethodGet, "/showtimes/5/seats?sessionId=abc", "", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", seats.gotID)
	assert.Equal(t, "abc", seats.gotSS)
	assert.JSONEq(t, `{"showtimeId":"5","seats":[
		{"showtimeSeatId":"50","seatLabel":"A1","status":"selected"},
		{"showtimeSeatId":"51","seatLabel":"A2","status":"booked"}]}`, rec.Body.String())
}

func TestShowtimeCreate(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewShowtimeHandler(repository.NewShowtimeRepo(db), &fakeSeatMap{}, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	e := echo.New()
	e.POST("/showtimes", h.Create)

	rec := call(t, e, http.MethodPost, "/showtimes", `{"movieId":1,"screenId":2,"startsAt":"2026-02-01T19:00:00Z","priceCents":900}`, 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT duration_min FROM movies")).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"duration_min"}))
	mock.ExpectRollback()
	rec = call(t, e, http.MethodPost, "/showtimes", `{"movieId":1,"screenId":2,"startsAt":"2026-04-01T19:00:00Z","priceCents":900}`, 0, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"movie not found"}`, rec.Body.String())
}

func TestShowtimeDelete(t *testing.T) {
	db, mock := newMockDB(t)
	seats := &fakeSeatMap{}
	h := NewShowtimeHandler(repository.NewShowtimeRepo(db), seats, nil)
	e := echo.New()
	e.DELETE("/showtimes/:id", h.Delete)
	del := regexp.QuoteMeta("DELETE FROM showtimes WHERE id = ?")

	mock.ExpectExec(del).WithArgs(uint64(5)).
		WillReturnError(&mysql.MySQLError{Number: 1451, Message: "row is referenced"})
	rec := call(t, e, http.MethodDelete, "/showtimes/5", "", 0, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"showtime has bookings"}`, rec.Body.String())

	mock.ExpectExec(del).WithArgs(uint64(6)).WillReturnResult(sqlmock.NewResult(0, 0))
	rec = call(t, e, http.MethodDelete, "/showtimes/6", "", 0, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, seats.closed, "rooms stay open when nothing was deleted")

	mock.ExpectExec(del).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	rec = call(t, e, http.MethodDelete, "/showtimes/7", "", 0, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"7"}, seats.closed)
}

func TestShowtimeListAll(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewShowtimeHandler(repository.NewShowtimeRepo(db), &fakeSeatMap{}, nil)
	e := echo.New()
	e.GET("/showtimes", h.ListAll)

	start := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "movie_id", "screen_id", "starts_at", "ends_at", "price_cents", "created_at",
		"title", "screen", "theatre_id", "theatre", "total", "booked"}).
		AddRow(9, 1, 2, start, start.Add(2*time.Hour), 900, start, "Dune", "Hall 1", 3, "Odeon", 40, 12)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY st.starts_at, st.id")).
		WillReturnRows(rows)

	rec := call(t, e, http.MethodGet, "/showtimes", "", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"id":9,"movieId":1,"screenId":2,
		"startsAt":"2026-03-02T19:00:00Z","endsAt":"2026-03-02T21:00:00Z","priceCents":900,
		"createdAt":"2026-03-02T19:00:00Z","movieTitle":"Dune","screenName":"Hall 1",
		"theatreId":3,"theatreName":"Odeon","seatsTotal":40,"seatsBooked":12}]}`, rec.Body.String())

	rec = call(t, e, http.MethodGet, "/showtimes?from=tomorrow", "", 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShowtimeCount(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewShowtimeHandler(repository.NewShowtimeRepo(db), &fakeSeatMap{}, nil)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC) }
	e := echo.New()
	e.GET("/showtimes/count", h.Count)
	count := regexp.QuoteMeta("SELECT COUNT(*) FROM showtimes WHERE starts_at >= ? AND starts_at < ?")

	mock.ExpectQuery(count).WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(4))
	rec := call(t, e, http.MethodGet, "/showtimes/count?date=today", "", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"2026-03-01","count":4}`, rec.Body.String())

	mock.ExpectQuery(count).WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	rec = call(t, e, http.MethodGet, "/showtimes/count?date=2026-04-10", "", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"2026-04-10","count":0}`, rec.Body.String())

	rec = call(t, e, http.MethodGet, "/showtimes/count?date=10/04/2026", "", 0, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAllScreens(t *testing.T) {
	db, mock := newMockDB(t)
	h := NewTheatreHandler(repository.NewTheatreRepo(db), nil)
	e := echo.New()
	e.GET("/screens", h.ListAllScreens)

	created := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN theatres t ON t.id = sc.theatre_id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "theatre_id", "name", "seat_rows", "seat_cols", "created_at", "theatre"}).
			AddRow(2, 3, "Hall 1", 5, 8, created, "Odeon"))

	rec := call(t, e, http.MethodGet, "/screens", "", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"id":2,"theatreId":3,"name":"Hall 1","rows":5,"cols":8,
		"createdAt":"2026-01-05T10:00:00Z","theatreName":"Odeon"}]}`, rec.Body.String())
}
