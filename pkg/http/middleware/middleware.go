package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"MarketPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover converts panics into 500 responses instead of killing the
// process.
func Recover(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					log.Error("panic recovered",
						logger.Err(err),
						logger.String("stack", string(debug.Stack())),
					)
					_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
						"status":  http.StatusInternalServerError,
						"message": "Internal Server Error",
					})
				}
			}()
			return next(c)
		}
	}
}

// RequestLogging logs method, path, status and latency per request.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Debug("http request",
				logger.String("method", c.Request().Method),
				logger.String("path", c.Request().RequestURI),
				logger.Int("status", c.Response().Status),
				logger.Dur("latency", time.Since(start)),
			)
			return err
		}
	}
}
