// Package store keeps the latest value seen for every telemetry path.
package store

import (
	"sort"
	"sync"

	"golang.org/x/exp/maps"

	sk "github.com/Krillle/SignalKKit"
)

// Store maps normalized paths to the most recent value. Every write lands
// under both the absolute and the relative key, so reads succeed regardless
// of which form the caller holds. Later writes overwrite unconditionally;
// no history is kept.
type Store struct {
	mu     sync.RWMutex
	values map[string]sk.Value
}

func New() *Store {
	return &Store{values: make(map[string]sk.Value)}
}

// Put records v under both keys of ref.
func (s *Store) Put(ref sk.PathRef, v sk.Value) {
	s.mu.Lock()
	s.values[ref.Absolute] = v
	if ref.Relative != "" && ref.Relative != ref.Absolute {
		s.values[ref.Relative] = v
	}
	s.mu.Unlock()
}

// Get returns the latest value stored under path.
func (s *Store) Get(path string) (sk.Value, bool) {
	s.mu.RLock()
	v, ok := s.values[path]
	s.mu.RUnlock()
	return v, ok
}

// Float64 reads path and coerces the value per Value.Float.
func (s *Store) Float64(path string) (float64, bool) {
	v, ok := s.Get(path)
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Paths lists every stored key, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	keys := maps.Keys(s.values)
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot copies the current contents for serving.
func (s *Store) Snapshot() map[string]sk.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Len reports the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
