package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(burst int) *RateLimiter {
	rl := NewRateLimiter(RateLimiterConfig{
		LoginRate:       rate.Limit(1.0 / 60.0),
		LoginBurst:      burst,
		ContactRate:     rate.Limit(1.0 / 60.0),
		ContactBurst:    burst,
		CleanupInterval: time.Hour,
	})
	return rl
}

func TestLoginMiddleware_BlocksAfterBurst(t *testing.T) {
	rl := newTestRateLimiter(3)
	defer rl.Stop()

	handler := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		req.RemoteAddr = "203.0.113.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	req.RemoteAddr = "203.0.113.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header is missing")
	}
}

func TestLoginMiddleware_IndependentPerIP(t *testing.T) {
	rl := newTestRateLimiter(1)
	defer rl.Stop()

	handler := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	first.RemoteAddr = "203.0.113.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first IP: status = %d", rec.Code)
	}

	// 別IPは独立したバケットを持つ
	second := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	second.RemoteAddr = "203.0.113.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("second IP: status = %d, want 200", rec.Code)
	}

	if rl.LoginLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.LoginLimiterCount())
	}
}

func TestContactMiddleware_IndependentFromLogin(t *testing.T) {
	rl := newTestRateLimiter(1)
	defer rl.Stop()

	login := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	contact := rl.ContactMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
	req.RemoteAddr = "203.0.113.1:1234"
	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d", rec.Code)
	}

	// ログインのバケットを消費しても問い合わせのバケットには影響しない
	req = httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	req.RemoteAddr = "203.0.113.1:1234"
	rec = httptest.NewRecorder()
	contact.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("contact: status = %d, want 200", rec.Code)
	}
}
