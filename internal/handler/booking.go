package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/service"
)

// commitTimeout bounds a whole booking, locks pinned included.
const commitTimeout = 10 * time.Second

// Booker turns held seats into a booking.
type Booker interface {
	Book(ctx context.Context, req service.BookingRequest) (model.Booking, error)
}

// BookingHandler serves checkout and booking history.
type BookingHandler struct {
	booker   Booker
	bookings *repository.BookingRepo
	log      *zap.Logger
}

func NewBookingHandler(booker Booker, bookings *repository.BookingRepo, log *zap.Logger) *BookingHandler {
	return &BookingHandler{booker: booker, bookings: bookings, log: orNop(log).Named("bookings")}
}

// bookingReq uses the same string ids as the realtime protocol.
type bookingReq struct {
	ShowtimeID      string   `json:"showtimeId"`
	ShowtimeSeatIDs []string `json:"showtimeSeatIds"`
	SessionID       string   `json:"sessionId"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	showtimeID, err := strconv.ParseUint(strings.TrimSpace(req.ShowtimeID), 10, 64)
	if err != nil || showtimeID == 0 {
		return badRequest(c, "invalid showtimeId")
	}
	seatIDs, err := service.ParseIDs(req.ShowtimeSeatIDs)
	if err != nil || len(seatIDs) == 0 {
		return badRequest(c, "showtimeSeatIds must be a non-empty list of seat ids")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return badRequest(c, "sessionId is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), commitTimeout)
	defer cancel()
	b, err := h.booker.Book(ctx, service.BookingRequest{
		UserID:          uid,
		ShowtimeID:      showtimeID,
		ShowtimeSeatIDs: seatIDs,
		SessionID:       strings.TrimSpace(req.SessionID),
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, b)
	case errors.Is(err, service.ErrSeatsNoLongerAvailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrSeatsNoLongerAvailable.Error()})
	case errors.Is(err, service.ErrSessionNotOwned):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrInvalidBooking):
		return badRequest(c, "duplicate seats in request")
	case errors.Is(err, repository.ErrShowtimeNotFound):
		return notFound(c, "showtime not found")
	}
	return serverError(c, h.log, "booking failed", err)
}

// Mine handles GET /v1/my-bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.bookings.ListByUser(ctx, uid)
	if err != nil {
		return serverError(c, h.log, "list bookings failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/bookings/:id.  Other users' bookings read as missing.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	b, err := h.bookings.GetForUser(ctx, id, uid)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return notFound(c, "booking not found")
	}
	if err != nil {
		return serverError(c, h.log, "load booking failed", err)
	}
	return c.JSON(http.StatusOK, b)
}
