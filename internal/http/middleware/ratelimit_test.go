package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	handler := RateLimit(RateLimitConfig{
		Requests: 2,
		Window:   time.Second,
		Logger:   logger,
	})(okHandler())

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, code := range want {
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != code {
			t.Errorf("Request %d: got status %d, want %d", i+1, w.Code, code)
		}
	}

	// another client has its own budget
	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "192.168.1.2:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Other client: got status %d, want %d", w.Code, http.StatusOK)
	}
}

func TestPerMinute_Disabled(t *testing.T) {
	handler := PerMinute(0, nil)(okHandler())

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: got status %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestPerMinute_Enabled(t *testing.T) {
	handler := PerMinute(1, nil)(okHandler())

	var limited bool
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/metrics", nil)
		req.RemoteAddr = "10.0.0.1:1"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected a request to be rate limited")
	}
}
