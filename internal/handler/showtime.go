package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/seatlock"
	"github.com/iliyamo/movie-booking/internal/service"
)

// SeatMap renders a showtime's seats with the live lock overlay and retires
// the live room of a deleted showtime.
type SeatMap interface {
	Snapshot(ctx context.Context, showtimeID, sessionID string) ([]seatlock.SeatView, error)
	CloseRoom(showtimeID string) int
}

// ShowtimeHandler schedules showtimes and serves their seat maps.
type ShowtimeHandler struct {
	showtimes *repository.ShowtimeRepo
	seats     SeatMap
	log       *zap.Logger
	now       func() time.Time
}

func NewShowtimeHandler(showtimes *repository.ShowtimeRepo, seats SeatMap, log *zap.Logger) *ShowtimeHandler {
	return &ShowtimeHandler{
		showtimes: showtimes,
		seats:     seats,
		log:       orNop(log).Named("showtimes"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type showtimeReq struct {
	MovieID    uint64    `json:"movieId"`
	ScreenID   uint64    `json:"screenId"`
	StartsAt   time.Time `json:"startsAt"` // RFC 3339
	PriceCents uint32    `json:"priceCents"`
}

// Create handles POST /v1/admin/showtimes.  Every seat of the screen becomes
// an available showtime seat.
func (h *ShowtimeHandler) Create(c echo.Context) error {
	var req showtimeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	switch {
	case req.MovieID == 0 || req.ScreenID == 0:
		return badRequest(c, "movieId and screenId are required")
	case !req.StartsAt.After(h.now()):
		return badRequest(c, "startsAt must be in the future")
	}

	st := model.Showtime{MovieID: req.MovieID, ScreenID: req.ScreenID, StartsAt: req.StartsAt, PriceCents: req.PriceCents}
	ctx, cancel := dbContext(c)
	defer cancel()
	err := h.showtimes.Create(ctx, &st)
	switch {
	case err == nil:
		h.log.Info("showtime scheduled",
			zap.Uint64("showtime_id", st.ID),
			zap.Uint64("movie_id", st.MovieID),
			zap.Time("starts_at", st.StartsAt))
		return c.JSON(http.StatusCreated, st)
	case errors.Is(err, repository.ErrMovieNotFound):
		return notFound(c, "movie not found")
	case errors.Is(err, repository.ErrScreenNotFound):
		return notFound(c, "screen not found")
	}
	return serverError(c, h.log, "create showtime failed", err)
}

// ListByMovie handles GET /v1/movies/:id/showtimes.  Past showtimes are
// omitted unless ?from= (RFC 3339) says otherwise.
func (h *ShowtimeHandler) ListByMovie(c echo.Context) error {
	movieID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	from := h.now()
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "from must be RFC 3339")
		}
		from = t
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.showtimes.ListByMovie(ctx, movieID, from)
	if err != nil {
		return serverError(c, h.log, "list showtimes failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/showtimes/:id.
func (h *ShowtimeHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	st, err := h.showtimes.GetByID(ctx, id)
	if errors.Is(err, repository.ErrShowtimeNotFound) {
		return notFound(c, "showtime not found")
	}
	if err != nil {
		return serverError(c, h.log, "load showtime failed", err)
	}
	return c.JSON(http.StatusOK, st)
}

// Seats handles GET /v1/showtimes/:id/seats.  With ?sessionId= the caller's
// own locks read as "selected".
func (h *ShowtimeHandler) Seats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	seats, err := h.seats.Snapshot(ctx, service.FormatID(id), c.QueryParam("sessionId"))
	if errors.Is(err, seatlock.ErrUnknownShowtime) {
		return notFound(c, "showtime not found")
	}
	if err != nil {
		return serverError(c, h.log, "load seats failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"showtimeId": service.FormatID(id), "seats": seats})
}

// Delete handles DELETE /v1/admin/showtimes/:id.  Showtimes with bookings
// are refused with 409.  On success anyone viewing the seat map is told the
// showtime is gone and their locks are dropped.
func (h *ShowtimeHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid showtime id")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	err := h.showtimes.Delete(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrShowtimeNotFound):
		return notFound(c, "showtime not found")
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "showtime has bookings"})
	default:
		return serverError(c, h.log, "delete showtime failed", err)
	}

	viewers := h.seats.CloseRoom(service.FormatID(id))
	h.log.Info("showtime deleted", zap.Uint64("showtime_id", id), zap.Int("viewers", viewers))
	return c.NoContent(http.StatusNoContent)
}

// ListAll handles GET /v1/admin/showtimes: every showtime with its movie,
// screen, theatre and occupancy.  ?from= (RFC 3339) hides earlier ones.
func (h *ShowtimeHandler) ListAll(c echo.Context) error {
	var from time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "from must be RFC 3339")
		}
		from = t
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.showtimes.ListDetailed(ctx, from)
	if err != nil {
		return serverError(c, h.log, "list showtimes failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Count handles GET /v1/admin/showtimes/count?date=.  date is "today" (the
// default) or YYYY-MM-DD; days are UTC.
func (h *ShowtimeHandler) Count(c echo.Context) error {
	day := h.now().UTC().Truncate(24 * time.Hour)
	if v := c.QueryParam("date"); v != "" && v != "today" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return badRequest(c, "date must be today or YYYY-MM-DD")
		}
		day = d
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	n, err := h.showtimes.CountStarting(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return serverError(c, h.log, "count showtimes failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": day.Format("2006-01-02"), "count": n})
}
