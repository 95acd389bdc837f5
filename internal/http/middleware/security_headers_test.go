package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpsHeaders(t *testing.T) {
	handler := OpsHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	tests := []struct {
		header string
		want   string
	}{
		{"Cache-Control", "no-store"},
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}

	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s header = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestOpsHeaders_RateLimitedResponse(t *testing.T) {
	handler := OpsHeaders(PerMinute(1, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/metrics", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", last.Code, http.StatusTooManyRequests)
	}
	if got := last.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control on 429 = %v, want no-store", got)
	}
}
