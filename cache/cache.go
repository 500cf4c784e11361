// Package cache provides a small in-memory TTL store. It holds extraction
// results awaiting human review, keyed by token, so an abandoned review
// does not pin memory forever.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long an entry lives without being claimed
const DefaultTTL = 30 * time.Minute

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Store is a concurrency-safe expiring key-value store
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]

	lifetime time.Duration
	done     chan struct{}
	once     sync.Once
}

// New creates a store whose entries expire after ttl. A background sweeper
// reclaims expired entries once a minute until Close is called.
func New[T any](ttl time.Duration) *Store[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store[T]{
		entries:  make(map[string]entry[T]),
		lifetime: ttl,
		done:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Put stores value under key, resetting its expiry
func (s *Store[T]) Put(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, expiresAt: time.Now().Add(s.lifetime)}
}

// Get returns the value for key if present and unexpired
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Take returns and removes the value for key, the claim operation for a
// review token
func (s *Store[T]) Take(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	delete(s.entries, key)
	return e.value, true
}

// Delete removes key if present
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len reports how many unexpired entries are held
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	n := 0
	for _, e := range s.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the background sweeper
func (s *Store[T]) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store[T]) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
