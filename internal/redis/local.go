package redisclient

import (
	"context"
	"sync"
)

// localLocker serializes callers inside one process. It is used when no
// Redis address is configured.
type localLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() Locker {
	return &localLocker{slots: make(map[string]chan struct{})}
}

func (l *localLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// WithLocks blocks until every key is free or ctx is done.
func (l *localLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	var held []chan struct{}

	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}()

	for _, key := range normalizeKeys(keys) {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fn(ctx)
}
