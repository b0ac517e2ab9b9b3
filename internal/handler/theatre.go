package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
)

// TheatreHandler manages theatres and their screens.
type TheatreHandler struct {
	theatres *repository.TheatreRepo
	log      *zap.Logger
}

func NewTheatreHandler(theatres *repository.TheatreRepo, log *zap.Logger) *TheatreHandler {
	return &TheatreHandler{theatres: theatres, log: orNop(log).Named("theatres")}
}

type theatreReq struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address"`
}

type screenReq struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
	Cols int    `json:"cols"`
}

const maxScreenCols = 50

// Create handles POST /v1/admin/theatres.
func (h *TheatreHandler) Create(c echo.Context) error {
	var req theatreReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	t := model.Theatre{Name: strings.TrimSpace(req.Name), City: strings.TrimSpace(req.City), Address: strings.TrimSpace(req.Address)}
	if t.Name == "" || t.City == "" {
		return badRequest(c, "name and city are required")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	err := h.theatres.Create(ctx, &t)
	if errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "theatre already exists"})
	}
	if err != nil {
		return serverError(c, h.log, "create theatre failed", err)
	}
	return c.JSON(http.StatusCreated, t)
}

// List handles GET /v1/theatres.
func (h *TheatreHandler) List(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.theatres.List(ctx)
	if err != nil {
		return serverError(c, h.log, "list theatres failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateScreen handles POST /v1/admin/theatres/:id/screens.  The seat grid is
// generated with the screen.
func (h *TheatreHandler) CreateScreen(c echo.Context) error {
	theatreID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid theatre id")
	}
	var req screenReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	s := model.Screen{TheatreID: theatreID, Name: strings.TrimSpace(req.Name), SeatRows: req.Rows, SeatCols: req.Cols}
	if s.Name == "" {
		return badRequest(c, "name is required")
	}
	if s.SeatRows < 1 || s.SeatRows > repository.MaxScreenRows || s.SeatCols < 1 || s.SeatCols > maxScreenCols {
		return badRequest(c, "rows must be 1-26 and cols 1-50")
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	err := h.theatres.CreateScreen(ctx, &s)
	switch {
	case err == nil:
		h.log.Info("screen created", zap.Uint64("screen_id", s.ID), zap.Int("seats", s.SeatRows*s.SeatCols))
		return c.JSON(http.StatusCreated, s)
	case errors.Is(err, repository.ErrTheatreNotFound):
		return notFound(c, "theatre not found")
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "screen name already used"})
	}
	return serverError(c, h.log, "create screen failed", err)
}

// ListScreens handles GET /v1/theatres/:id/screens.
func (h *TheatreHandler) ListScreens(c echo.Context) error {
	theatreID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid theatre id")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if _, err := h.theatres.GetByID(ctx, theatreID); err != nil {
		if errors.Is(err, repository.ErrTheatreNotFound) {
			return notFound(c, "theatre not found")
		}
		return serverError(c, h.log, "load theatre failed", err)
	}
	items, err := h.theatres.ListScreens(ctx, theatreID)
	if err != nil {
		return serverError(c, h.log, "list screens failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListAllScreens handles GET /v1/admin/screens: every screen of every
// theatre, for picking one when scheduling a showtime.
func (h *TheatreHandler) ListAllScreens(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.theatres.ListAllScreens(ctx)
	if err != nil {
		return serverError(c, h.log, "list screens failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
