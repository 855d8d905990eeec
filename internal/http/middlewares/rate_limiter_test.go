package middlewares_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/identity/internal/http/middlewares"
	"github.com/geocoder89/identity/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis: connection refused")
}

func TestRateLimit_RejectsWithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/users/signin/", middlewares.RateLimit(ratelimit.NewMemory(1, time.Minute), middlewares.KeyByRouteAndIP, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/users/signin/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first request: got %d", w.Code)
	}

	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra == "" || ra == "0" {
		t.Fatalf("expected positive Retry-After, got %q", ra)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", middlewares.RateLimit(erroringLimiter{}, middlewares.KeyByUserOrIP, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200 when limiter errors", w.Code)
	}
}
