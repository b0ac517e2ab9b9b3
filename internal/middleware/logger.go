package middleware

import (
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request.  Server errors log at error level
// and client errors at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	log = log.Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error response so the status below is final
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.Int("status", res.Status),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", redactQuery(req.URL.RawQuery)),
				zap.String("ip", c.RealIP()),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("bytes", res.Size),
			}
			if id, ok := UserID(c); ok {
				fields = append(fields, zap.Uint64("user_id", id))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			switch {
			case res.Status >= 500:
				log.Error("server error", fields...)
			case res.Status >= 400:
				log.Warn("client error", fields...)
			default:
				log.Info("request completed", fields...)
			}
			return nil
		}
	}
}

// secretParams are query parameters that carry credentials.  The websocket
// handshake sends its access token as ?token= because browsers cannot set
// headers on it.
var secretParams = []string{"token", "access_token", "refresh_token"}

// redactQuery masks credential values in a raw query string.  A query that
// does not parse is dropped whole rather than logged as is.
func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparsable]"
	}
	hit := false
	for _, k := range secretParams {
		if _, ok := q[k]; ok {
			q.Set(k, "REDACTED")
			hit = true
		}
	}
	if !hit {
		return raw
	}
	return q.Encode()
}
