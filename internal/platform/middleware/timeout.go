package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context. Handlers observe it
// through their repository and client calls; a handler that fails with
// context.DeadlineExceeded before writing anything answers 504.
//
// Paths ending in one of the given suffixes (e.g. "/generate") get
// longTimeout instead.
func RequestTimeout(timeout, longTimeout time.Duration, longSuffixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := timeout
			path := c.Request().URL.Path
			for _, s := range longSuffixes {
				if strings.HasSuffix(path, s) {
					d = longTimeout
					break
				}
			}
			if d <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(err, context.DeadlineExceeded) && !c.Response().Committed {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request exceeded the allowed time")
			}
			return err
		}
	}
}
