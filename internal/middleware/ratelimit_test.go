package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}

	wantRemaining := []int{2, 1, 0}
	for i, want := range wantRemaining {
		allowed, remaining, retryAfter := store.Allow(ctx, "global:10.0.0.1", cfg)
		if !allowed || remaining != want || retryAfter != 0 {
			t.Fatalf("request %d = (%v, %d, %d), want (true, %d, 0)", i+1, allowed, remaining, retryAfter, want)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, "global:10.0.0.1", cfg)
	if allowed || remaining != 0 {
		t.Errorf("fourth request = (%v, %d), want blocked", allowed, remaining)
	}
	if retryAfter < 1 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want within the one minute window", retryAfter)
	}

	// Other keys, including the same client under another prefix, are independent.
	for _, key := range []string{"global:10.0.0.2", "alert_write:10.0.0.1"} {
		if ok, _, _ := store.Allow(ctx, key, cfg); !ok {
			t.Errorf("key %s was blocked by another key's quota", key)
		}
	}
}

func TestInMemoryRateLimitStore_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 50 * time.Millisecond}

	store.Allow(ctx, "k", cfg)
	if ok, _, _ := store.Allow(ctx, "k", cfg); ok {
		t.Fatal("second request inside the window was allowed")
	}

	time.Sleep(80 * time.Millisecond)

	if ok, remaining, _ := store.Allow(ctx, "k", cfg); !ok || remaining != 0 {
		t.Errorf("after expiry = (%v, %d), want a fresh window", ok, remaining)
	}
}

func TestInMemoryRateLimitStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Minute}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := store.Allow(ctx, "kiosk", cfg); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want exactly 50", allowed)
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRateLimitStore()

	store.Allow(ctx, "short", RateLimitConfig{RequestsPerWindow: 5, WindowDuration: 10 * time.Millisecond})
	store.Allow(ctx, "long", RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Hour})
	time.Sleep(30 * time.Millisecond)

	store.Cleanup()

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.buckets["short"]; ok {
		t.Error("expired bucket survived Cleanup")
	}
	if _, ok := store.buckets["long"]; !ok {
		t.Error("live bucket was removed by Cleanup")
	}
}

func TestInMemoryRateLimitStore_RunCleanupStops(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{"remote addr", "192.168.1.1:12345", "", "", "192.168.1.1"},
		{"remote addr without port", "192.168.1.1", "", "", "192.168.1.1"},
		{"ipv6 remote addr", "[2001:db8::1]:8080", "", "", "2001:db8::1"},
		{"forwarded for", "10.0.0.1:1", "203.0.113.50", "", "203.0.113.50"},
		{"first hop of chain", "10.0.0.1:1", "  203.0.113.50 , 198.51.100.1", "", "203.0.113.50"},
		{"real ip", "10.0.0.1:1", "", " 203.0.113.51 ", "203.0.113.51"},
		{"forwarded for wins over real ip", "10.0.0.1:1", "203.0.113.50", "198.51.100.1", "203.0.113.50"},
	}

	keyFunc := IPKeyFunc()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			if got := keyFunc(req); got != tt.want {
				t.Errorf("IPKeyFunc() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoteAddrKeyFunc_IgnoresForwardingHeaders(t *testing.T) {
	keyFunc := RemoteAddrKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("X-Real-IP", "203.0.113.10")

	if got := keyFunc(req); got != "192.168.1.1" {
		t.Errorf("RemoteAddrKeyFunc() = %q, want 192.168.1.1", got)
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	calls := 0
	h := RateLimiter(store, cfg, RemoteAddrKeyFunc(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	got := []int{send("10.0.0.1:1"), send("10.0.0.1:2"), send("10.0.0.1:3"), send("10.0.0.2:1")}
	want := []int{200, 200, 429, 200}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status codes = %v, want %v", got, want)
		}
	}
	if calls != 3 {
		t.Errorf("next called %d times, want 3", calls)
	}
}

func TestRateLimiter_RetryHeaders(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 30 * time.Second}
	h := RateLimiter(store, cfg, RemoteAddrKeyFunc(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var w *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/flow", nil))
	}

	retry := w.Header().Get("Retry-After")
	if retry == "" || retry == "0" {
		t.Errorf("Retry-After = %q", retry)
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset")
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr string
	}{
		{"valid", RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}, ""},
		{"zero requests", RateLimitConfig{WindowDuration: time.Minute}, "RequestsPerWindow"},
		{"negative requests", RateLimitConfig{RequestsPerWindow: -1, WindowDuration: time.Minute}, "RequestsPerWindow"},
		{"zero window", RateLimitConfig{RequestsPerWindow: 1}, "WindowDuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultLimits(t *testing.T) {
	global := DefaultGlobalLimit()
	writes := DefaultAlertWriteLimit()
	if global.RequestsPerWindow != 100 || global.WindowDuration != time.Minute {
		t.Errorf("DefaultGlobalLimit() = %+v", global)
	}
	if writes.RequestsPerWindow != 20 || writes.WindowDuration != time.Minute {
		t.Errorf("DefaultAlertWriteLimit() = %+v", writes)
	}

	if global.Scope == writes.Scope {
		t.Errorf("default limiters share scope %q", global.Scope)
	}

	global.RequestsPerWindow = 1
	if DefaultGlobalLimit().RequestsPerWindow != 100 {
		t.Error("mutating a returned default leaked into the package default")
	}
}

func TestRateLimiter_BlockedResponse(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute, Scope: "global"}
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := RateLimiter(store, config, IPKeyFunc(), m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/queue", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if ct := last.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "rate_limited" {
		t.Errorf("error code = %q, want rate_limited", body.Error.Code)
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}

	if got := testutil.ToFloat64(m.limitChecks.WithLabelValues("global", "/api/dashboard/queue")); got != 2 {
		t.Errorf("rate limit requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.limitBlocked.WithLabelValues("global", "/api/dashboard/queue")); got != 1 {
		t.Errorf("rate limit blocked = %v, want 1", got)
	}
}

func TestRateLimiter_RemainingHeader(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	handler := RateLimiter(store, config, IPKeyFunc(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, want := range []string{"2", "1", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.RemoteAddr = "10.0.0.2:5000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != want {
			t.Errorf("request %d: X-RateLimit-Remaining = %q, want %q", i+1, got, want)
		}
		if got := rr.Header().Get("X-RateLimit-Limit"); got != "3" {
			t.Errorf("request %d: X-RateLimit-Limit = %q, want 3", i+1, got)
		}
	}
}

func TestPrefixedKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/alerts/1/status", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	if got := PrefixedKeyFunc("alerts", IPKeyFunc())(req); got != "alerts:192.168.1.1" {
		t.Errorf("PrefixedKeyFunc() = %q, want alerts:192.168.1.1", got)
	}
}

func TestSecondsUntil(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{-time.Second, 1},
		{100 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{30 * time.Second, 30},
	}
	for _, tt := range tests {
		if got := secondsUntil(tt.in); got != tt.want {
			t.Errorf("secondsUntil(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
