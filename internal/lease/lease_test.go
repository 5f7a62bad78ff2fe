package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	locker, err := NewRedis("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis locker: %v", err)
	}
	t.Cleanup(func() { locker.Close() })
	return locker, s
}

func TestRedisAcquireRelease(t *testing.T) {
	locker, s := setupTestRedis(t)
	ctx := context.Background()

	l, err := locker.Acquire(ctx, "book.json")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !s.Exists("parajoin:lease:book.json") {
		t.Fatal("lease key not set")
	}
	if ttl := s.TTL("parajoin:lease:book.json"); ttl != time.Minute {
		t.Errorf("lease ttl = %v, want 1m", ttl)
	}

	if _, err := locker.Acquire(ctx, "book.json"); !errors.Is(err, ErrHeld) {
		t.Errorf("second Acquire err = %v, want ErrHeld", err)
	}
	if _, err := locker.Acquire(ctx, "other.json"); err != nil {
		t.Errorf("Acquire of another document failed: %v", err)
	}

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if s.Exists("parajoin:lease:book.json") {
		t.Error("lease key still set after release")
	}
	if _, err := locker.Acquire(ctx, "book.json"); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestRedisLeaseExpires(t *testing.T) {
	locker, s := setupTestRedis(t)
	ctx := context.Background()

	first, err := locker.Acquire(ctx, "book.json")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	second, err := locker.Acquire(ctx, "book.json")
	if err != nil {
		t.Fatalf("Acquire after expiry failed: %v", err)
	}

	// the stale holder must not delete the new holder's key
	if err := first.Release(ctx); !errors.Is(err, ErrLost) {
		t.Errorf("stale Release err = %v, want ErrLost", err)
	}
	if !s.Exists("parajoin:lease:book.json") {
		t.Error("stale release removed the current lease")
	}
	if err := second.Release(ctx); err != nil {
		t.Errorf("Release failed: %v", err)
	}
}

func TestNewRedisBadURL(t *testing.T) {
	if _, err := NewRedis("not a url", time.Second); err == nil {
		t.Error("expected error for bad redis url")
	}
}

func TestLocalAcquireRelease(t *testing.T) {
	locker := NewLocal()
	ctx := context.Background()

	l, err := locker.Acquire(ctx, "book.json")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "book.json"); !errors.Is(err, ErrHeld) {
		t.Errorf("second Acquire err = %v, want ErrHeld", err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := l.Release(ctx); !errors.Is(err, ErrLost) {
		t.Errorf("double Release err = %v, want ErrLost", err)
	}
	if _, err := locker.Acquire(ctx, "book.json"); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestLocalCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLocal().Acquire(ctx, "book.json"); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire err = %v, want context.Canceled", err)
	}
}
