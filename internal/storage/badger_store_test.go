package storage

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

type record struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func (r *record) GetID() string { return r.ID }

func TestBadgerStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore(db, "rec")

	t.Run("Create", func(t *testing.T) {
		r := &record{ID: uuid.New().String(), Value: "first"}

		err := store.Create(r)
		require.NoError(t, err)

		// Records are append-only; creating twice fails.
		err = store.Create(r)
		assert.Error(t, err)
	})

	t.Run("Get", func(t *testing.T) {
		r := &record{ID: uuid.New().String(), Value: "second"}
		require.NoError(t, store.Create(r))

		var got record
		err := store.Get(r.ID, &got)
		require.NoError(t, err)
		assert.Equal(t, r.Value, got.Value)

		err = store.Get("does-not-exist", &got)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Has", func(t *testing.T) {
		r := &record{ID: uuid.New().String(), Value: "third"}
		require.NoError(t, store.Create(r))

		ok, err := store.Has(r.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Has("does-not-exist")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("PrefixesAreIsolated", func(t *testing.T) {
		other := NewBadgerStore(db, "other")
		r := &record{ID: "shared-id", Value: "in rec"}
		require.NoError(t, store.Create(r))

		ok, err := other.Has("shared-id")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRefStore(t *testing.T) {
	db := setupTestDB(t)
	refs := NewRefStore(db, "ref")

	t.Run("UnsetIsEmpty", func(t *testing.T) {
		value, err := refs.Get("HEAD")
		require.NoError(t, err)
		assert.Equal(t, "", value)
	})

	t.Run("FirstUpdateFromEmpty", func(t *testing.T) {
		err := refs.Update("HEAD", "", "rev-1")
		require.NoError(t, err)

		value, err := refs.Get("HEAD")
		require.NoError(t, err)
		assert.Equal(t, "rev-1", value)
	})

	t.Run("AdvanceWithCorrectOld", func(t *testing.T) {
		err := refs.Update("HEAD", "rev-1", "rev-2")
		require.NoError(t, err)

		value, err := refs.Get("HEAD")
		require.NoError(t, err)
		assert.Equal(t, "rev-2", value)
	})

	t.Run("StaleUpdateFails", func(t *testing.T) {
		err := refs.Update("HEAD", "rev-1", "rev-3")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStaleRef)

		// Value unchanged after the failed swap.
		value, err := refs.Get("HEAD")
		require.NoError(t, err)
		assert.Equal(t, "rev-2", value)
	})
}
