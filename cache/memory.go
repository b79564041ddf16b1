package cache

import (
	"context"
	"sync"
	"time"

	"github.com/marstr/collection/v2"

	"go-exchange-rate-updater"
)

// DefaultCapacity of a MemoryStore
const DefaultCapacity = 1024

type entry struct {
	rates   []updater.ExchangeRate
	expires time.Time
}

// MemoryStore an in-process Store evicting the least recently used key once full
type MemoryStore struct {
	mu  sync.Mutex
	lru *collection.LRUCache[string, entry]
	now func() time.Time
}

// NewMemoryStore holds at most capacity keys
func NewMemoryStore(capacity uint) *MemoryStore {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		lru: collection.NewLRUCache[string, entry](capacity),
		now: time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]updater.ExchangeRate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(key)
	if !ok || !s.now().Before(e.expires) {
		return nil, false, nil
	}
	return clone(e.rates), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, rates []updater.ExchangeRate, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Put(key, entry{rates: clone(rates), expires: s.now().Add(ttl)})
	return nil
}
