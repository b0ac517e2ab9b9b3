package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-booking/internal/utils"
)

// JWTAuth returns a middleware that authenticates requests with a Bearer
// access token signed with secret.  On success the caller's id (uint64) and
// role are stored in the Echo context under "user_id" and "role", where
// UserID, Role and RequireRole read them.  A missing header or any value
// that is not a valid, unexpired access token ends the request with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Expect "Authorization: Bearer <token>".
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			// The subject carries the numeric user id.
			uid, err := claims.UserID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			c.Set(ctxUserID, uid)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}
