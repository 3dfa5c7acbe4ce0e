package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLocker(t *testing.T, ttl time.Duration) (Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:            mr.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLocker(client, ttl), mr
}

func TestRedisLocker_HoldsKeysDuringFn(t *testing.T) {
	l, mr := newTestRedisLocker(t, 5*time.Second)

	called := false
	err := l.WithLocks(context.Background(), []string{"lock:b", "lock:a", "lock:b"}, func(ctx context.Context) error {
		called = true
		for _, key := range []string{"lock:a", "lock:b"} {
			if !mr.Exists(key) {
				t.Errorf("expected %s to be held", key)
			}
			if ttl := mr.TTL(key); ttl != 5*time.Second {
				t.Errorf("expected %s ttl 5s, got %s", key, ttl)
			}
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected fn context to carry the lock ttl as deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected fn to run")
	}

	for _, key := range []string{"lock:a", "lock:b"} {
		if mr.Exists(key) {
			t.Errorf("expected %s to be released", key)
		}
	}
}

func TestRedisLocker_KeyHeldElsewhere(t *testing.T) {
	l, mr := newTestRedisLocker(t, 5*time.Second)
	if err := mr.Set("lock:b", "other-holder"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	called := false
	err := l.WithLocks(context.Background(), []string{"lock:b", "lock:a"}, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
	if called {
		t.Error("fn must not run without every lock")
	}

	if mr.Exists("lock:a") {
		t.Error("expected partially acquired lock:a to be released")
	}
	if got, _ := mr.Get("lock:b"); got != "other-holder" {
		t.Errorf("expected lock:b to stay with its holder, got %q", got)
	}
}

func TestRedisLocker_KeepsSuccessorsLock(t *testing.T) {
	l, mr := newTestRedisLocker(t, 5*time.Second)

	// The lock expires during fn and another holder takes the key.
	err := l.WithLocks(context.Background(), []string{"lock:a"}, func(context.Context) error {
		mr.Del("lock:a")
		return mr.Set("lock:a", "successor")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := mr.Get("lock:a"); got != "successor" {
		t.Errorf("expected successor's lock to survive release, got %q", got)
	}
}

func TestRedisLocker_ReleasesOnError(t *testing.T) {
	l, mr := newTestRedisLocker(t, 5*time.Second)
	boom := errors.New("boom")

	err := l.WithLocks(context.Background(), []string{"lock:a"}, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if mr.Exists("lock:a") {
		t.Error("expected lock:a to be released after fn error")
	}

	if err := l.WithLocks(context.Background(), []string{"lock:a"}, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected lock to be free again, got %v", err)
	}
}

func TestRedisLocker_ExpiredLockCanBeTaken(t *testing.T) {
	l, mr := newTestRedisLocker(t, 5*time.Second)
	if err := mr.Set("lock:a", "crashed-holder"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	mr.SetTTL("lock:a", time.Second)
	mr.FastForward(2 * time.Second)

	if err := l.WithLocks(context.Background(), []string{"lock:a"}, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected expired lock to be acquired, got %v", err)
	}
}
