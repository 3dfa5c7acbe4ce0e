package redisclient

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{"lock:b", "lock:a", "lock:b"})
	if !slices.Equal(got, []string{"lock:a", "lock:b"}) {
		t.Errorf("unexpected keys %v", got)
	}
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLocks(context.Background(), []string{"lock:day", "lock:numbering"}, func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected at most one holder, saw %d", maxSeen)
	}
}

func TestLocalLocker_ReleasesOnError(t *testing.T) {
	l := NewLocalLocker()
	boom := errors.New("boom")

	err := l.WithLocks(context.Background(), []string{"k"}, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.WithLocks(ctx, []string{"k"}, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected lock to be free again, got %v", err)
	}
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	l := NewLocalLocker()
	release := make(chan struct{})
	acquired := make(chan struct{})

	go func() {
		_ = l.WithLocks(context.Background(), []string{"k"}, func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.WithLocks(ctx, []string{"k"}, func(context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(release)
}
