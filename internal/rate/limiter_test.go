package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLimiterWindow(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Fail(ctx, "a@b.com"); err != nil {
			t.Fatalf("Fail %d: %v", i, err)
		}
		if err := l.Check(ctx, "a@b.com"); err != nil {
			t.Fatalf("Check after %d failures: %v", i+1, err)
		}
	}
	if err := l.Fail(ctx, "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected third failure to exhaust window, got %v", err)
	}
	if err := l.Check(ctx, "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected Check to be limited, got %v", err)
	}
	if ttl := mr.TTL("si:a@b.com"); ttl != time.Minute {
		t.Fatalf("window ttl = %v, want 1m", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "a@b.com"); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestLimiterResetAndPrefix(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute, Prefix: "app"})
	ctx := context.Background()

	_ = l.Fail(ctx, "x@y.com")
	if !mr.Exists("app:si:x@y.com") {
		t.Fatal("expected prefixed key")
	}
	if n, err := l.Attempts(ctx, "x@y.com"); err != nil || n != 1 {
		t.Fatalf("Attempts = %d, %v", n, err)
	}
	if err := l.Reset(ctx, "x@y.com"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _ := l.Attempts(ctx, "x@y.com"); n != 0 {
		t.Fatalf("Attempts after reset = %d", n)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute})
	mr.Close()
	if err := l.Check(context.Background(), "a@b.com"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
