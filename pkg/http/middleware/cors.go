package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// CORSConfig lists the origins allowed to call the archive API from a browser.
// An empty list allows any origin.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       int
}

// CORS allows cross-origin reads and ingestion writes. Cache-Control is exposed so
// dashboards can honour the history endpoints' freshness hints.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		ExposeHeaders: []string{echo.HeaderCacheControl},
		MaxAge:        cfg.MaxAge,
	})
}
