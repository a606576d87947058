package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"CryptoArchive/pkg/http/middleware"
	applogger "CryptoArchive/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORS            bool
	CORSOrigins     []string
	Metrics         bool
	SlowThreshold   time.Duration
	Middleware      []echo.MiddlewareFunc
	HealthChecks    map[string]HealthCheck
}

// Server wraps Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	log    *applogger.Logger
}

// Handler registers a group of routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// NewServer creates a new HTTP server with Echo.
func NewServer(l *applogger.Logger, handler Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORS:            true,
		Metrics:         true,
		SlowThreshold:   time.Second,
		HealthChecks:    map[string]HealthCheck{},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover(l))
	if cfg.Metrics {
		e.Use(middleware.Metrics(l, cfg.SlowThreshold))
	}
	e.Use(middleware.RequestLogging(l))

	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{AllowOrigins: cfg.CORSOrigins, MaxAge: 600}))
	}
	e.Use(cfg.Middleware...)

	if handler != nil {
		handler.RegisterRoutes(e)
	}

	e.GET("/healthz", healthz(cfg.HealthChecks))
	if cfg.Metrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{
		echo:   e,
		config: cfg,
		log:    l,
	}
}

func healthz(checks map[string]HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			return DataResponse(c, http.StatusServiceUnavailable, status)
		}
		return SuccessResponse(c, status)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	go func() {
		s.log.Info("http server listening", applogger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", applogger.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// ShutdownTimeout returns the configured grace period.
func (s *Server) ShutdownTimeout() time.Duration { return s.config.ShutdownTimeout }

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// WithHost sets server host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) {
		c.Host = host
	}
}

// WithPort sets server port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) {
		c.Port = port
	}
}

// WithTimeouts sets read/write timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithCORS enables/disables CORS.
func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) {
		c.CORS = enabled
	}
}

// WithCORSOrigins restricts browser access to the given origins.
func WithCORSOrigins(origins ...string) ServerOption {
	return func(c *ServerConfig) {
		c.CORSOrigins = origins
	}
}

// WithMetrics toggles request metrics and the /metrics endpoint.
func WithMetrics(enabled bool) ServerOption {
	return func(c *ServerConfig) {
		c.Metrics = enabled
	}
}

// WithMiddleware appends middleware after the built-in chain.
func WithMiddleware(mw ...echo.MiddlewareFunc) ServerOption {
	return func(c *ServerConfig) {
		c.Middleware = append(c.Middleware, mw...)
	}
}

// WithHealthCheck registers a named dependency probe on /healthz.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(c *ServerConfig) {
		if check != nil {
			c.HealthChecks[name] = check
		}
	}
}
