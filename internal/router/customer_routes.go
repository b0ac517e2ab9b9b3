package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/handler"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/model"
)

// RegisterCustomer registers checkout and booking history.  Admins may book
// too.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
	g.POST("/bookings", b.Create)
	g.GET("/bookings/:id", b.Get)
	g.GET("/my-bookings", b.Mine)
}
