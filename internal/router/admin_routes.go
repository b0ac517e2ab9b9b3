package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/handler"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/model"
)

// RegisterAdmin registers catalogue management under /v1/admin.  All routes
// require the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, m *handler.MovieHandler, t *handler.TheatreHandler, s *handler.ShowtimeHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	g.GET("/users/count", a.CountUsers)

	g.POST("/movies", m.Create)
	g.GET("/movies/count", m.Count)
	g.PUT("/movies/:id", m.Update)
	g.DELETE("/movies/:id", m.Delete)

	g.POST("/theatres", t.Create)
	g.POST("/theatres/:id/screens", t.CreateScreen)
	g.GET("/screens", t.ListAllScreens)

	g.POST("/showtimes", s.Create)
	g.GET("/showtimes", s.ListAll)
	g.GET("/showtimes/count", s.Count)
	g.DELETE("/showtimes/:id", s.Delete)
}
