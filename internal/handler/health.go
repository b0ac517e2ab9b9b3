package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health reports liveness plus database reachability and the number of open
// realtime connections.
type Health struct {
	DB          *sql.DB
	Connections func() int
}

func (h Health) Check(c echo.Context) error {
	resp := echo.Map{"status": "ok"}
	if h.Connections != nil {
		resp["connections"] = h.Connections()
	}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
