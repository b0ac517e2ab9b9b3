package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys written by JWTAuth and read by the helpers below.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user's id as stored by JWTAuth.  The
// boolean is false for anonymous requests and for a zero id, so handlers can
// treat both the same way and answer 401.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role, or "" for anonymous requests.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// identity is the caller as used in rate limit keys: the user id when
// authenticated, "anon" otherwise.
func identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
