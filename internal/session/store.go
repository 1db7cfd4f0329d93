// Package session keeps the per-browser login state: the backend bearer
// token and the cached user profile. State lives behind the Store
// capability so the web layer can use cookies and tests can use memory.
package session

import (
	"errors"
	"sync"
)

// ErrEmptyKey is returned when a Store is asked to write an empty key.
var ErrEmptyKey = errors.New("session: empty key")

// Store is a small key-value capability. Store overwrites unconditionally,
// Clear removes unconditionally, and Load never fails: absence is reported
// through the boolean.
type Store interface {
	Store(key, value string) error
	Load(key string) (string, bool)
	Clear(key string) error
	ClearAll() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Store(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Load(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryStore) Clear(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.data)
	return nil
}
