package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carecircle/api/internal/platform/auth"
)

const maxStackBytes = 4 << 10

// Recovery turns a handler panic into a 500 and logs it with the request and
// actor it happened under. http.ErrAbortHandler is re-raised so net/http can
// drop the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				stack := make([]byte, maxStackBytes)
				stack = stack[:runtime.Stack(stack, false)]

				evt := logger.Error().
					Str("request_id", RequestIDFromContext(c)).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack)
				if actor, ok := auth.ActorIDFromContext(c.Request().Context()); ok {
					evt = evt.Str("actor_id", actor.String())
				}
				evt.Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
