// Package router registers the HTTP and websocket routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/handler"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/realtime"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, h handler.Health) {
	e.GET("/healthz", h.Check)
}

// RegisterAuth registers token issuing under /v1/auth and the caller's own
// profile under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))

	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the browse endpoints guests can call.  The
// catalogue goes through the response cache; seat maps never do since they
// change with every lock.
func RegisterPublic(e *echo.Echo, m *handler.MovieHandler, t *handler.TheatreHandler, s *handler.ShowtimeHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/movies", m.List, cache)
	g.GET("/movies/:id", m.Get, cache)
	g.GET("/movies/:id/showtimes", s.ListByMovie, cache)
	g.GET("/theatres", t.List, cache)
	g.GET("/theatres/:id/screens", t.ListScreens, cache)
	g.GET("/showtimes/:id", s.Get, cache)
	g.GET("/showtimes/:id/seats", s.Seats)
}

// RegisterRealtime mounts the seat-lock websocket.  It authenticates with
// ?token= itself.
func RegisterRealtime(e *echo.Echo, hub *realtime.Hub) {
	e.GET("/ws", hub.Handle)
}
