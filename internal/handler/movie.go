package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MovieHandler serves the public catalogue and its admin management.
type MovieHandler struct {
	movies *repository.MovieRepo
	log    *zap.Logger
}

func NewMovieHandler(movies *repository.MovieRepo, log *zap.Logger) *MovieHandler {
	return &MovieHandler{movies: movies, log: orNop(log).Named("movies")}
}

type movieReq struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Director      string   `json:"director"`
	Cast          []string `json:"cast"`
	Genres        []string `json:"genres"`
	ReleaseDate   string   `json:"releaseDate"` // YYYY-MM-DD
	DurationMin   int      `json:"durationMin"`
	Rating        string   `json:"rating"`
	IMDBRating    *float64 `json:"imdbRating"`
	TrailerURL    string   `json:"trailerUrl"`
	PosterURL     string   `json:"posterUrl"`
	PosterHomeURL string   `json:"posterHomeUrl"`
}

func (r movieReq) toModel() (model.Movie, string) {
	m := model.Movie{
		Title:         strings.TrimSpace(r.Title),
		Description:   strings.TrimSpace(r.Description),
		Director:      strings.TrimSpace(r.Director),
		Cast:          trimAll(r.Cast),
		Genres:        trimAll(r.Genres),
		DurationMin:   r.DurationMin,
		Rating:        strings.TrimSpace(r.Rating),
		IMDBRating:    r.IMDBRating,
		TrailerURL:    strings.TrimSpace(r.TrailerURL),
		PosterURL:     strings.TrimSpace(r.PosterURL),
		PosterHomeURL: strings.TrimSpace(r.PosterHomeURL),
	}
	switch {
	case m.Title == "":
		return m, "title is required"
	case m.DurationMin <= 0:
		return m, "durationMin must be positive"
	case m.IMDBRating != nil && (*m.IMDBRating < 0 || *m.IMDBRating > 10):
		return m, "imdbRating must be between 0 and 10"
	}
	d, err := time.Parse("2006-01-02", strings.TrimSpace(r.ReleaseDate))
	if err != nil {
		return m, "releaseDate must be YYYY-MM-DD"
	}
	m.ReleaseDate = d
	return m, ""
}

// List handles GET /v1/movies?q=&genre=&limit=&offset=.
func (h *MovieHandler) List(c echo.Context) error {
	f := repository.MovieFilter{
		Query:  c.QueryParam("q"),
		Genre:  c.QueryParam("genre"),
		Limit:  defaultPageSize,
		Offset: 0,
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return badRequest(c, "invalid limit")
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		f.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return badRequest(c, "invalid offset")
		}
		f.Offset = n
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.movies.List(ctx, f)
	if err != nil {
		return serverError(c, h.log, "list movies failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "limit": f.Limit, "offset": f.Offset})
}

// Get handles GET /v1/movies/:id.
func (h *MovieHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	m, err := h.movies.GetByID(ctx, id)
	if errors.Is(err, repository.ErrMovieNotFound) {
		return notFound(c, "movie not found")
	}
	if err != nil {
		return serverError(c, h.log, "load movie failed", err)
	}
	return c.JSON(http.StatusOK, m)
}

// Create handles POST /v1/admin/movies.
func (h *MovieHandler) Create(c echo.Context) error {
	var req movieReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	m, problem := req.toModel()
	if problem != "" {
		return badRequest(c, problem)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.movies.Create(ctx, &m); err != nil {
		return serverError(c, h.log, "create movie failed", err)
	}
	h.log.Info("movie created", zap.Uint64("movie_id", m.ID), zap.String("title", m.Title))
	return c.JSON(http.StatusCreated, m)
}

// Update handles PUT /v1/admin/movies/:id.
func (h *MovieHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	var req movieReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	m, problem := req.toModel()
	if problem != "" {
		return badRequest(c, problem)
	}
	m.ID = id

	ctx, cancel := dbContext(c)
	defer cancel()
	err := h.movies.Update(ctx, &m)
	if errors.Is(err, repository.ErrMovieNotFound) {
		return notFound(c, "movie not found")
	}
	if err != nil {
		return serverError(c, h.log, "update movie failed", err)
	}
	return c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /v1/admin/movies/:id.
func (h *MovieHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid movie id")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	err := h.movies.Delete(ctx, id)
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, repository.ErrMovieNotFound):
		return notFound(c, "movie not found")
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "movie has showtimes"})
	}
	return serverError(c, h.log, "delete movie failed", err)
}

// Count handles GET /v1/admin/movies/count.
func (h *MovieHandler) Count(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	n, err := h.movies.Count(ctx)
	if err != nil {
		return serverError(c, h.log, "count movies failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
