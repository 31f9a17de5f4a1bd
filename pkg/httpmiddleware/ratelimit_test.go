package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit(t *testing.T) {
	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(context.Background(), RateLimitConfig{Max: 2, Window: time.Minute}),
	)

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do("10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("10.0.0.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "same IP, different port shares the budget")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do("10.0.0.2:1234")
	assert.Equal(t, http.StatusOK, rec.Code, "different IP has its own budget")
}

func TestRateLimitWindowReset(t *testing.T) {
	rl := &rateLimiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Second},
		windows: make(map[string]*window),
	}
	now := time.Now()

	_, _, ok := rl.allow("k", now)
	assert.True(t, ok)
	_, _, ok = rl.allow("k", now)
	assert.False(t, ok)

	_, _, ok = rl.allow("k", now.Add(time.Second))
	assert.True(t, ok, "new window grants a fresh budget")

	rl.sweep(now.Add(3 * time.Second))
	assert.Empty(t, rl.windows)
}

func TestRateLimitSweeperStops(t *testing.T) {
	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	for range 10 {
		RateLimit(ctx, RateLimitConfig{Max: 1, Window: time.Millisecond})
	}
	cancel()

	// Poll from the test goroutine: assert.Eventually runs the condition in
	// a fresh goroutine each tick, which keeps NumGoroutine above the baseline.
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("sweepers exit on context cancel: %d goroutines, want <= %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWrapOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}),
		mark("outer"), mark("inner"),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
