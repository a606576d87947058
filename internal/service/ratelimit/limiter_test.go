package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestAllowDrainsAndRefills(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestMiddlewareReturns429(t *testing.T) {
	e := echo.New()
	l := New(1, 0)
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, l.Middleware())

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
