package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLocker is a single-process locker for dry runs and tests
type MemoryLocker struct {
	mu      sync.Mutex
	holders map[string]holder
	now     func() time.Time
	seq     uint64
}

type holder struct {
	id        uint64
	expiresAt time.Time
}

// NewMemoryLocker creates an empty locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{holders: make(map[string]holder), now: time.Now}
}

// Acquire takes key for ttl or fails with ErrLocked. Expired holders are
// replaced.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.holders[key]; ok && now.Before(h.expiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	l.seq++
	id := l.seq
	l.holders[key] = holder{id: id, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, ok := l.holders[key]; ok && h.id == id {
			delete(l.holders, key)
		}
		return nil
	}, nil
}
