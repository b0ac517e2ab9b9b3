package handler

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/service"
)

type mockBooker struct{ mock.Mock }

func (m *mockBooker) Book(ctx context.Context, req service.BookingRequest) (model.Booking, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Booking), args.Error(1)
}

func newBookingServer(t *testing.T) (*echo.Echo, *mockBooker, sqlmock.Sqlmock) {
	db, sm := newMockDB(t)
	booker := &mockBooker{}
	t.Cleanup(func() { booker.AssertExpectations(t) })
	h := NewBookingHandler(booker, repository.NewBookingRepo(db), nil)
	e := echo.New()
	e.POST("/bookings", h.Create, auth())
	e.GET("/bookings/:id", h.Get, auth())
	e.GET("/my-bookings", h.Mine, auth())
	return e, booker, sm
}

const bookingBody = `{"showtimeId":"7","showtimeSeatIds":["11","12"],"sessionId":"sess"}`

func TestBookingCreate(t *testing.T) {
	e, booker, _ := newBookingServer(t)
	want := service.BookingRequest{UserID: 5, ShowtimeID: 7, ShowtimeSeatIDs: []uint64{11, 12}, SessionID: "sess"}
	booker.On("Book", mock.Anything, want).Return(model.Booking{
		ID: 100, Reference: "ref-1", UserID: 5, ShowtimeID: 7, Status: model.BookingConfirmed, TotalCents: 1800,
		Seats: []model.BookingSeat{{ShowtimeSeatID: 11, SeatLabel: "B3"}, {ShowtimeSeatID: 12, SeatLabel: "B4"}},
	}, nil).Once()

	rec := call(t, e, http.MethodPost, "/bookings", bookingBody, 5, "CUSTOMER")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"reference":"ref-1"`)
	assert.Contains(t, rec.Body.String(), `"totalCents":1800`)
}

func TestBookingCreate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"seats gone", service.ErrSeatsNoLongerAvailable, http.StatusConflict, `{"error":"your seats are no longer available"}`},
		{"foreign session", service.ErrSessionNotOwned, http.StatusForbidden, `{"error":"forbidden"}`},
		{"duplicates", service.ErrInvalidBooking, http.StatusBadRequest, `{"error":"duplicate seats in request"}`},
		{"no showtime", repository.ErrShowtimeNotFound, http.StatusNotFound, `{"error":"showtime not found"}`},
		{"database", assert.AnError, http.StatusInternalServerError, `{"error":"booking failed"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, booker, _ := newBookingServer(t)
			booker.On("Book", mock.Anything, mock.Anything).Return(model.Booking{}, tc.err).Once()
			rec := call(t, e, http.MethodPost, "/bookings", bookingBody, 5, "CUSTOMER")
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestBookingCreate_BadInput(t *testing.T) {
	e, booker, _ := newBookingServer(t)

	rec := call(t, e, http.MethodPost, "/bookings", bookingBody, 0, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, body := range []string{
		`{"showtimeId":"x","showtimeSeatIds":["11"],"sessionId":"s"}`,
		`{"showtimeId":"7","showtimeSeatIds":[],"sessionId":"s"}`,
		`{"showtimeId":"7","showtimeSeatIds":["A1"],"sessionId":"s"}`,
		`{"showtimeId":"7","showtimeSeatIds":["11"],"sessionId":" "}`,
	} {
		rec = call(t, e, http.MethodPost, "/bookings", body, 5, "CUSTOMER")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	booker.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
}

var bookingCols = []string{"id", "reference", "user_id", "showtime_id", "status", "total_cents", "created_at",
	"movie_id", "title", "starts_at", "screen", "theatre"}

func TestBookingHistory(t *testing.T) {
	e, _, sm := newBookingServer(t)
	at := time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)

	sm.ExpectQuery(regexp.QuoteMeta("WHERE b.user_id = ?")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(100, "ref-1", 5, 7, "CONFIRMED", 1800, at, 1, "Dune", at, "Hall 1", "Roxy"))
	sm.ExpectQuery(regexp.QuoteMeta("FROM booking_seats bs")).WithArgs(uint64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "showtime_seat_id", "label"}).
			AddRow(100, 11, "B3").AddRow(100, 12, "B4"))

	rec := call(t, e, http.MethodGet, "/my-bookings", "", 5, "CUSTOMER")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"movieTitle":"Dune"`)
	assert.Contains(t, rec.Body.String(), `"seatLabel":"B4"`)

	sm.ExpectQuery(regexp.QuoteMeta("WHERE b.id = ? AND b.user_id = ?")).WithArgs(uint64(100), uint64(6)).
		WillReturnRows(sqlmock.NewRows(bookingCols))
	rec = call(t, e, http.MethodGet, "/bookings/100", "", 6, "CUSTOMER")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
