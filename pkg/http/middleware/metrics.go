package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "CryptoArchive/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptoarchive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptoarchive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "class"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cryptoarchive_http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	regOnce sync.Once
)

// Metrics records request metrics labelled by the echo route template, which keeps
// cardinality bounded for paths like /api/archive/prices/:symbol.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	regOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInFlight)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpInFlight.Inc()
			defer httpInFlight.Dec()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			code := c.Response().Status
			duration := time.Since(start)

			httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
			httpRequestDuration.WithLabelValues(route, method, statusClass(code)).Observe(duration.Seconds())

			switch {
			case code >= 500:
				l.Error("http request failed",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", code),
					applogger.Duration("duration_ms", duration),
				)
			case slowThreshold > 0 && duration >= slowThreshold:
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", code),
					applogger.Duration("duration_ms", duration),
				)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
