package store

import "sync"

// Store is a pluggable persistence layer for the cached credential.
// The in-memory default is fine for tests; use FileStore to survive
// process restarts in CLI or single-host services.
type Store interface {
	// Load returns the persisted credential, or nil when none exists.
	Load() (*Credential, error)
	// Save replaces the persisted credential.
	Save(credential *Credential) error
}

type memoryStore struct {
	mu         sync.RWMutex
	credential *Credential
}

func (m *memoryStore) Load() (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credential.Clone(), nil
}

func (m *memoryStore) Save(credential *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = credential.Clone()
	return nil
}

func NewMemoryStore() Store {
	return &memoryStore{}
}
