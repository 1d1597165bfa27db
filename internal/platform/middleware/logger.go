package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentira/clinic-api/internal/platform/auth"
	"github.com/dentira/clinic-api/internal/platform/db"
)

// Logger emits one structured line per request. Clinic and user are read
// after the handler chain runs, once the auth and clinic-schema middleware
// have populated the request context.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			reqCtx := c.Request().Context()
			if clinic := db.ClinicFromContext(reqCtx); clinic != "" {
				evt = evt.Str("clinic_id", clinic)
			}
			if user := auth.UserIDFromContext(reqCtx); user != "" {
				evt = evt.Str("user_id", user)
			}

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
