package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

// redisOrSkip connects to REDIS_URL (default localhost:6379) and skips the
// test when nothing answers.
func redisOrSkip(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	client, err := NewRedisClient(url)
	if err != nil {
		t.Fatalf("NewRedisClient(%q) error = %v", url, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// testKey returns a per-test key and removes its counter afterwards.
func testKey(t *testing.T, client *redis.Client, name string) string {
	t.Helper()
	key := name + ":" + strconv.FormatInt(time.Now().UnixNano(), 36)
	t.Cleanup(func() { client.Del(context.Background(), redisKeyPrefix+key) })
	return key
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redisOrSkip(t)
	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	key := testKey(t, client, "global:198.51.100.7")
	ctx := context.Background()

	for i, want := range []int{2, 1, 0} {
		allowed, remaining, _ := store.Allow(ctx, key, cfg)
		if !allowed || remaining != want {
			t.Fatalf("request %d = (%v, %d), want (true, %d)", i+1, allowed, remaining, want)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, cfg)
	if allowed || remaining != 0 {
		t.Errorf("fourth request = (%v, %d), want blocked", allowed, remaining)
	}
	if retryAfter < 1 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}

	ttl, err := client.PTTL(ctx, redisKeyPrefix+key).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("counter TTL = %v (err %v), want within the window", ttl, err)
	}
}

func TestRedisRateLimitStore_SharedAcrossReplicas(t *testing.T) {
	client := redisOrSkip(t)
	// Two stores on one Redis stand in for two API replicas.
	a := NewRedisRateLimitStore(client)
	b := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	key := testKey(t, client, "alert_write:203.0.113.4")
	other := testKey(t, client, "global:203.0.113.4")
	ctx := context.Background()

	a.Allow(ctx, key, cfg)
	b.Allow(ctx, key, cfg)
	if ok, _, _ := a.Allow(ctx, key, cfg); ok {
		t.Error("third request across replicas was allowed")
	}
	if ok, _, _ := b.Allow(ctx, other, cfg); !ok {
		t.Error("a differently prefixed key shared the exhausted budget")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a Redis TTL")
	}
	client := redisOrSkip(t)
	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 200 * time.Millisecond}
	key := testKey(t, client, "expiry")
	ctx := context.Background()

	store.Allow(ctx, key, cfg)
	if ok, _, _ := store.Allow(ctx, key, cfg); ok {
		t.Fatal("second request inside the window was allowed")
	}

	time.Sleep(300 * time.Millisecond)

	if ok, _, _ := store.Allow(ctx, key, cfg); !ok {
		t.Error("request after the window expired was blocked")
	}
}

func TestRedisRateLimitStore_RestoresLostTTL(t *testing.T) {
	client := redisOrSkip(t)
	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}
	key := testKey(t, client, "no-ttl")
	ctx := context.Background()

	// A counter left without expiry would otherwise block the client forever.
	if err := client.Set(ctx, redisKeyPrefix+key, 4, 0).Err(); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ok, remaining, _ := store.Allow(ctx, key, cfg); !ok || remaining != 5 {
		t.Errorf("Allow() = (%v, %d), want (true, 5)", ok, remaining)
	}
	if ttl := client.PTTL(ctx, redisKeyPrefix+key).Val(); ttl <= 0 {
		t.Errorf("TTL = %v, want the window to be restored", ttl)
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	client, err := NewRedisClient("redis://127.0.0.1:1/0")
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	defer client.Close()

	var logs bytes.Buffer
	m := NewMetrics()
	store := NewRedisRateLimitStore(client).
		WithMetrics(m).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	allowed, remaining, retryAfter := store.Allow(context.Background(), "global:10.0.0.9", cfg)
	if !allowed || remaining != cfg.RequestsPerWindow || retryAfter != 0 {
		t.Errorf("Allow() = (%v, %d, %d), want full quota while Redis is down", allowed, remaining, retryAfter)
	}
	if got := testutil.ToFloat64(m.rateLimitRedisErrors); got != 1 {
		t.Errorf("redis error counter = %v, want 1", got)
	}
	if !strings.Contains(logs.String(), "rate limit store unavailable") {
		t.Errorf("expected fail-open warning, got %q", logs.String())
	}
}

func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantDB  int
		wantErr bool
	}{
		{"default db", "redis://localhost:6379", 0, false},
		{"db index", "redis://:secret@cache.internal:6379/2", 2, false},
		{"tls", "rediss://cache.internal:6380/1", 1, false},
		{"wrong scheme", "http://not-redis", 0, true},
		{"garbage", "://", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisClient(tt.url)
			if tt.wantErr {
				if err == nil {
					client.Close()
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRedisClient() error = %v", err)
			}
			defer client.Close()

			opts := client.Options()
			if opts.DB != tt.wantDB {
				t.Errorf("DB = %d, want %d", opts.DB, tt.wantDB)
			}
			if opts.DialTimeout <= 0 || opts.DialTimeout > redisDialTimeout {
				t.Errorf("DialTimeout = %v, want (0, %v]", opts.DialTimeout, redisDialTimeout)
			}
		})
	}
}
