package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Obtain(ctx, "reconcile", time.Minute)
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}
	if _, err := l.Obtain(ctx, "reconcile", time.Minute); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("expected ErrNotObtained, got %v", err)
	}
	if _, err := l.Obtain(ctx, "other", time.Minute); err != nil {
		t.Fatalf("different keys should not conflict: %v", err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Obtain(ctx, "reconcile", time.Minute); err != nil {
		t.Fatalf("obtain after release: %v", err)
	}
}

func TestLocalExpiry(t *testing.T) {
	l := NewLocal()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := l.Obtain(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := l.Obtain(ctx, "k", time.Minute); err != nil {
		t.Fatalf("expired lease should be replaced: %v", err)
	}
	// The stale holder must not release the new lease.
	stale(ctx)
	if _, err := l.Obtain(ctx, "k", time.Minute); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("stale release freed the new lease")
	}
}

func TestLocalCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal().Obtain(ctx, "k", time.Second); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestRedisKeySanitized(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()
	r := NewRedis(rdb, "acctlog:lock:")

	tests := map[string]string{
		"acctlog:reconcile": "acctlog:lock:acctlog_reconcile",
		" North Shop ":      "acctlog:lock:north_shop",
	}
	for in, want := range tests {
		if got := r.RedisKey(in); got != want {
			t.Errorf("RedisKey(%q) = %q, want %q", in, got, want)
		}
	}
}
