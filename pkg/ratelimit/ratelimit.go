// Package ratelimit implements a fixed-window request counter keyed by
// client identity. The store is injected so tests can reset it and so a
// horizontally scaled deployment can swap the process-local map for a
// shared Redis backend without touching call sites. With the in-memory
// store, enforcement is approximate across instances.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Result reports the outcome of a single limit check.
type Result struct {
	Allowed      bool
	Remaining    int
	ResetSeconds int
}

// Store counts requests per key within fixed windows.
type Store interface {
	// Incr increments the counter for key, starting a fresh window when the
	// previous one has elapsed. It returns the running count and the moment
	// the current window resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// Limiter applies a max-requests-per-window policy on top of a Store.
type Limiter struct {
	store Store
}

// NewLimiter creates a Limiter backed by the given store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check records one request for key and reports whether it stays within
// max. The request that crosses the threshold is the one rejected.
func (l *Limiter) Check(ctx context.Context, key string, window time.Duration, max int) (Result, error) {
	count, resetAt, err := l.store.Incr(ctx, key, window)
	if err != nil {
		return Result{}, err
	}

	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	resetSeconds := int(math.Ceil(time.Until(resetAt).Seconds()))
	if resetSeconds < 1 {
		resetSeconds = 1
	}

	return Result{
		Allowed:      count <= int64(max),
		Remaining:    remaining,
		ResetSeconds: resetSeconds,
	}, nil
}

type windowEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a mutex-guarded in-process counter table. Expired windows
// are swept opportunistically to bound memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	ops     int
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*windowEntry), now: time.Now}
}

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++

	s.ops++
	if s.ops%256 == 0 {
		s.sweep(now)
	}

	return entry.count, entry.resetAt, nil
}

// Reset clears all counters. Test hook.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*windowEntry)
}

// Len reports the number of tracked windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweep(now time.Time) {
	for key, entry := range s.entries {
		if now.After(entry.resetAt) {
			delete(s.entries, key)
		}
	}
}
