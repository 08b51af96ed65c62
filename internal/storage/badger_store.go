// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a record id has no entry.
var ErrNotFound = errors.New("record not found")

// ErrStaleRef is returned when a compare-and-swap ref update loses a
// race: the ref no longer holds the value the caller expected.
var ErrStaleRef = errors.New("stale ref update")

// Entity represents any storable record with an ID.
type Entity interface {
	GetID() string
}

// BadgerStore keeps JSON-encoded records under a key prefix. Records
// are append-only: once created they are never rewritten or removed,
// which is what the immutable store layers rely on.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) Create(entity Entity) error {
	if entity.GetID() == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	return s.db.Update(func(txn *badger.Txn) error {
		// Check if key already exists
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("entity already exists: %s", entity.GetID())
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		return txn.Set(key, data)
	})
}

func (s *BadgerStore) Get(id string, entity Entity) error {
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, entity)
		})
	})

	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func (s *BadgerStore) Has(id string) (bool, error) {
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RefStore keeps named references to record or object ids. Updates are
// compare-and-swap so two writers cannot silently clobber each other's
// head advance.
type RefStore struct {
	db     *badger.DB
	prefix string
}

func NewRefStore(db *badger.DB, prefix string) *RefStore {
	return &RefStore{
		db:     db,
		prefix: prefix,
	}
}

func (r *RefStore) makeKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", r.prefix, name))
}

// Get returns the current value of the ref, or "" when it has never
// been set.
func (r *RefStore) Get(name string) (string, error) {
	var value string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.makeKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("reading ref %s: %w", name, err)
	}
	return value, nil
}

// Update advances the ref from old to new. The write fails with
// ErrStaleRef when the ref does not currently hold old; "" matches an
// unset ref.
func (r *RefStore) Update(name, old, new string) error {
	key := r.makeKey(name)
	return r.db.Update(func(txn *badger.Txn) error {
		current := ""
		item, err := txn.Get(key)
		if err == nil {
			if err := item.Value(func(val []byte) error {
				current = string(val)
				return nil
			}); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if current != old {
			return fmt.Errorf("%w: ref %s is %q, expected %q", ErrStaleRef, name, current, old)
		}
		return txn.Set(key, []byte(new))
	})
}
