package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the credential to a JSON file. Writes go through a
// temp file followed by a rename so a crash mid-write can never leave a
// partially written credential behind.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates a Store that persists the credential at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (*Credential, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	credential := &Credential{}
	if err = json.Unmarshal(data, credential); err != nil {
		return nil, err
	}
	return credential, nil
}

func (f *FileStore) Save(credential *Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.MarshalIndent(credential, "", "  ")
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
