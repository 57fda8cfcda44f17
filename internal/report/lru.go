package report

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LRUStore is an in-memory LRU cache that delegates to a backing Store on miss.
type LRUStore struct {
	mu   sync.Mutex
	lru  simplelru.LRUCache[string, *RunResult]
	back Store
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacities below 1 are raised to 1.
func NewLRUStore(size int, back Store) *LRUStore {
	if size < 1 {
		size = 1
	}
	// NewLRU only fails for a non-positive size.
	lru, _ := simplelru.NewLRU[string, *RunResult](size, nil)
	return &LRUStore{lru: lru, back: back}
}

// Save writes the result to the cache and to the backing store.
func (s *LRUStore) Save(result *RunResult) error {
	s.mu.Lock()
	s.lru.Add(result.ID, result)
	s.mu.Unlock()

	return s.back.Save(result)
}

// Load checks the cache first. On miss, loads from the backing store
// and promotes the result into the cache.
func (s *LRUStore) Load(runID string) (*RunResult, error) {
	s.mu.Lock()
	r, ok := s.lru.Get(runID)
	s.mu.Unlock()
	if ok {
		return r, nil
	}

	result, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lru.Add(runID, result)
	s.mu.Unlock()

	return result, nil
}

// Len returns the number of cached results.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
