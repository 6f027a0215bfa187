package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const stackSize = 4 << 10

// Recovery turns a handler panic into a 500 and logs it with the request's
// id, caller and a truncated stack.
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

				stack := make([]byte, stackSize)
				stack = stack[:runtime.Stack(stack, false)]
				rid, _ := c.Get("request_id").(string)
				uid, _ := c.Get("user_id").(string)

				evt := logger.Error()
				if e, ok := r.(error); ok {
					evt = evt.Err(e)
				} else {
					evt = evt.Str("panic", fmt.Sprint(r))
				}
				evt.
					Str("request_id", rid).
					Str("user_id", uid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
