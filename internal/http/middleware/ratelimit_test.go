package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func loginRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.9:4242"
	return req
}

func TestAccountRateLimitKeysOnField(t *testing.T) {
	limiter := NewRateLimiter(1.0/60, 2)
	var seen []string
	h := AccountRateLimit(limiter, "identifier")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		seen = append(seen, string(raw))
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(body string) *httptest.ResponseRecorder {
		res := httptest.NewRecorder()
		h.ServeHTTP(res, loginRequest(body))
		return res
	}

	for i := 0; i < 2; i++ {
		if res := serve(`{"identifier":"ops","password":"x"}`); res.Code != http.StatusNoContent {
			t.Fatalf("attempt %d: expected 204, got %d", i+1, res.Code)
		}
	}
	res := serve(`{"identifier":"OPS","password":"x"}`)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.Code)
	}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Code != "RATE_LIMIT" || env.Error.Message != MsgTooManyAttempts {
		t.Fatalf("unexpected error %+v", env.Error)
	}

	if res := serve(`{"identifier":"dispatch","password":"x"}`); res.Code != http.StatusNoContent {
		t.Fatalf("another account must pass, got %d", res.Code)
	}
	if len(seen) != 3 || seen[0] != `{"identifier":"ops","password":"x"}` {
		t.Fatalf("handler must see the original body, got %q", seen)
	}
}

func TestAccountRateLimitPassesRequestsWithoutField(t *testing.T) {
	limiter := NewRateLimiter(1.0/60, 1)
	h := AccountRateLimit(limiter, "email")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, body := range []string{`not json`, `{}`, `{"email":42}`, `{"email":"  "}`} {
		for i := 0; i < 3; i++ {
			res := httptest.NewRecorder()
			h.ServeHTTP(res, loginRequest(body))
			if res.Code != http.StatusNoContent {
				t.Fatalf("body %q: expected 204, got %d", body, res.Code)
			}
		}
	}
}

func TestRateLimitRetryAfterReflectsRefill(t *testing.T) {
	limiter := NewRateLimiter(0.1, 1)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	h := IPRateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, loginRequest(`{}`))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, loginRequest(`{}`))
	if res.Code != http.StatusTooManyRequests || res.Header().Get("Retry-After") != "10" {
		t.Fatalf("expected 429 with Retry-After 10, got %d %q", res.Code, res.Header().Get("Retry-After"))
	}

	now = now.Add(10 * time.Second)
	res = httptest.NewRecorder()
	h.ServeHTTP(res, loginRequest(`{}`))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected the bucket to refill, got %d", res.Code)
	}
}

func TestRateLimiterForgetsIdleBuckets(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		limiter.take(key)
	}
	now = now.Add(11 * time.Minute)
	limiter.take("d")

	if len(limiter.buckets) != 1 {
		t.Fatalf("expected only the fresh bucket, got %d", len(limiter.buckets))
	}
}

func TestRecoverWritesInternalEnvelope(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/trips", nil))

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "boom") {
		t.Fatalf("panic value leaked: %s", res.Body.String())
	}
	if !strings.Contains(res.Body.String(), `"code":"INTERNAL"`) {
		t.Fatalf("expected INTERNAL envelope, got %s", res.Body.String())
	}
}

func TestOriginsAllow(t *testing.T) {
	o := NewOrigins([]string{"https://app.winch.zone/", "*.winch.io", " "})
	cases := map[string]bool{
		"https://app.winch.zone":   true,
		"HTTPS://APP.WINCH.ZONE":   true,
		"https://ops.winch.io":     true,
		"https://winch.io":         false,
		"https://evilwinch.io":     false,
		"https://admin.winch.zone": false,
		"":                         false,
	}
	for origin, want := range cases {
		if got := o.Allow(origin); got != want {
			t.Errorf("Allow(%q) = %v, want %v", origin, got, want)
		}
	}
	if o.Empty() || !NewOrigins(nil).Empty() {
		t.Fatalf("unexpected Empty result")
	}
}

func TestCORSExposesDownloadHeaders(t *testing.T) {
	h := CORS(NewOrigins([]string{"http://localhost:5173"}))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/trips/export", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("origin not allowed: %v", res.Header())
	}
	if !strings.Contains(res.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
		t.Fatalf("Content-Disposition not exposed: %v", res.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/trips/export", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin allowed: %v", res.Header())
	}
}
