package memory

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Archive keeps remittance contents in memory.
type Archive struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewArchive constructs an in-memory archive.
func NewArchive() *Archive {
	return &Archive{items: make(map[string][]byte)}
}

// Put stores a copy of content under key. An existing key is never replaced.
func (a *Archive) Put(key string, content []byte) (string, error) {
	if key == "" {
		return "", errors.New("memory archive: empty key")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.items[key]; ok {
		return "", fmt.Errorf("memory archive: %s: %w", key, os.ErrExist)
	}
	a.items[key] = append([]byte(nil), content...)
	return key, nil
}

// Get returns a copy of the content stored under key.
func (a *Archive) Get(key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	content, ok := a.items[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), content...), nil
}
