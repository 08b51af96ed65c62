// Package store is the append-only, content-addressed object store.
// Objects are named by the hex sha256 of their encoded form; once
// written they are never modified or removed, so an address can be
// handed out freely. No delete operation is exposed.
package store

import (
	"fmt"
	"sync"

	"vellum/internal/errors"
	"vellum/internal/object"
	"vellum/internal/storage"
)

// Store is what the tree builder and the backends write objects through.
type Store interface {
	// Put saves data and returns its address. Storing the same bytes
	// twice is a no-op returning the same address.
	Put(data []byte) (string, error)

	// Get returns the bytes stored under id, failing with
	// ObjectNotFoundError when the store has no record of it.
	Get(id string) ([]byte, error)

	Has(id string) (bool, error)

	// GetRef returns the value of a named ref, "" when unset.
	GetRef(name string) (string, error)

	// UpdateRef advances a ref with compare-and-swap semantics; see
	// storage.RefStore.
	UpdateRef(name, old, new string) error

	Close() error
}

// MemoryStore keeps everything in maps. It backs tests and short-lived
// stores that never touch disk.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	refs    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		refs:    make(map[string]string),
	}
}

func (s *MemoryStore) Put(data []byte) (string, error) {
	addr := object.Address(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[addr]; !ok {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.objects[addr] = stored
	}
	return addr, nil
}

func (s *MemoryStore) Get(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[id]
	if !ok {
		return nil, &errors.ObjectNotFoundError{ID: id}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Has(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[id]
	return ok, nil
}

func (s *MemoryStore) GetRef(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.refs[name], nil
}

func (s *MemoryStore) UpdateRef(name, old, new string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.refs[name]
	if current != old {
		return fmt.Errorf("%w: ref %s is %q, expected %q", storage.ErrStaleRef, name, current, old)
	}
	s.refs[name] = new
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
