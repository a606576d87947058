package middleware

import (
	"time"

	applogger "CryptoArchive/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs HTTP requests.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			l.Debug("http request",
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("latency_ms", time.Since(start)),
			)
			return nil
		}
	}
}
