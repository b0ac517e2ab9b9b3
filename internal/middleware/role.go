package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that enforces that the authenticated user
// has one of the given roles.  It must run after JWTAuth, which stores the
// role in the Echo context.  Requests from any other role, and requests with
// no role at all, are aborted with 403 Forbidden and never reach the handler.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build the lookup once; the returned closure only reads it.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Role returns "" when JWTAuth did not run, which is never allowed.
			if !allowed[Role(c)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
