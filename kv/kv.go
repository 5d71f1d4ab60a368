// Package kv abstracts the small persistent settings store the token layer
// keeps its state in.
package kv

import "sync"

// Store is the minimal capability the token layer needs: string and bool
// values, each independently settable and removable. Implementations are
// safe for concurrent use. Persistence is best effort; a backend that
// cannot write keeps serving from memory.
type Store interface {
	GetString(key string) (string, bool)
	SetString(key, value string)
	GetBool(key string) bool
	SetBool(key string, value bool)
	Remove(key string)
}

// Memory is a Store held entirely in process memory.
type Memory struct {
	mu      sync.Mutex
	strings map[string]string
	bools   map[string]bool
}

func NewMemory() *Memory {
	return &Memory{strings: make(map[string]string), bools: make(map[string]bool)}
}

func (m *Memory) GetString(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.strings[key]
	return v, ok
}

func (m *Memory) SetString(key, value string) {
	m.mu.Lock()
	m.strings[key] = value
	m.mu.Unlock()
}

func (m *Memory) GetBool(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bools[key]
}

func (m *Memory) SetBool(key string, value bool) {
	m.mu.Lock()
	m.bools[key] = value
	m.mu.Unlock()
}

func (m *Memory) Remove(key string) {
	m.mu.Lock()
	delete(m.strings, key)
	delete(m.bools, key)
	m.mu.Unlock()
}
