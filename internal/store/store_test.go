package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vellum/internal/errors"
	"vellum/internal/object"
	"vellum/internal/storage"
)

func setupDiskStore(t *testing.T) *DiskStore {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewDiskStore(db, Options{Root: filepath.Join(t.TempDir(), "objects")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStoreContract(t *testing.T) {
	stores := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
		{"disk", func(t *testing.T) Store { return setupDiskStore(t) }},
	}

	for _, tc := range stores {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.open(t)

			t.Run("PutGetRoundTrip", func(t *testing.T) {
				data := object.EncodeBlob([]byte("some file content\n"))

				addr, err := s.Put(data)
				require.NoError(t, err)
				require.NotEmpty(t, addr)

				got, err := s.Get(addr)
				require.NoError(t, err)
				assert.Equal(t, data, got)
			})

			t.Run("PutIsIdempotent", func(t *testing.T) {
				data := object.EncodeBlob([]byte("same bytes"))

				first, err := s.Put(data)
				require.NoError(t, err)
				second, err := s.Put(data)
				require.NoError(t, err)
				assert.Equal(t, first, second)
			})

			t.Run("GetMissingObject", func(t *testing.T) {
				_, err := s.Get("0000000000000000000000000000000000000000000000000000000000000000")
				require.Error(t, err)

				var notFound *errors.ObjectNotFoundError
				assert.ErrorAs(t, err, &notFound)
			})

			t.Run("GetMalformedID", func(t *testing.T) {
				_, err := s.Get("not-a-real-address")
				require.Error(t, err)

				var notFound *errors.ObjectNotFoundError
				assert.ErrorAs(t, err, &notFound)
			})

			t.Run("Has", func(t *testing.T) {
				addr, err := s.Put(object.EncodeBlob([]byte("present")))
				require.NoError(t, err)

				ok, err := s.Has(addr)
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = s.Has("1111111111111111111111111111111111111111111111111111111111111111")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("Refs", func(t *testing.T) {
				value, err := s.GetRef("HEAD")
				require.NoError(t, err)
				assert.Equal(t, "", value)

				require.NoError(t, s.UpdateRef("HEAD", "", "rev-1"))
				require.NoError(t, s.UpdateRef("HEAD", "rev-1", "rev-2"))

				err = s.UpdateRef("HEAD", "rev-1", "rev-3")
				require.Error(t, err)
				assert.ErrorIs(t, err, storage.ErrStaleRef)

				value, err = s.GetRef("HEAD")
				require.NoError(t, err)
				assert.Equal(t, "rev-2", value)
			})
		})
	}
}

func TestDiskStoreLargeContentCompression(t *testing.T) {
	s := setupDiskStore(t)

	// Large and repetitive, so the on-disk form must be smaller.
	data := make([]byte, 0, 64*1024)
	for len(data) < 64*1024 {
		data = append(data, []byte("the same line of text, over and over\n")...)
	}
	encoded := object.EncodeBlob(data)

	addr, err := s.Put(encoded)
	require.NoError(t, err)

	info, err := os.Stat(s.objectPath(addr))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(encoded)))

	got, err := s.Get(addr)
	require.NoError(t, err)
	assert.Equal(t, encoded, got)
}

func TestDiskStoreDetectsCorruption(t *testing.T) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	root := filepath.Join(t.TempDir(), "objects")
	writer, err := NewDiskStore(db, Options{Root: root})
	require.NoError(t, err)
	t.Cleanup(func() { writer.Close() })

	addr, err := writer.Put(object.EncodeBlob([]byte("original bytes")))
	require.NoError(t, err)

	// Flip the stored file behind the store's back.
	require.NoError(t, os.WriteFile(writer.objectPath(addr), []byte("tampered"), 0o644))

	// A second store over the same db has a cold cache and must re-read
	// the file.
	reader, err := NewDiskStore(db, Options{Root: root})
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	_, err = reader.Get(addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestDiskStoreShardsObjectFiles(t *testing.T) {
	s := setupDiskStore(t)

	addr, err := s.Put(object.EncodeBlob([]byte("sharded")))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.root, addr[:2], addr[2:]), s.objectPath(addr))
	_, err = os.Stat(s.objectPath(addr))
	assert.NoError(t, err)
}
