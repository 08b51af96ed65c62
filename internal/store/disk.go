// internal/store/disk.go
package store

import (
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"vellum/internal/errors"
	"vellum/internal/object"
	"vellum/internal/storage"
)

// objectMeta records what the store knows about one object.
type objectMeta struct {
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *objectMeta) GetID() string { return m.Hash }

// DiskStore keeps objects as zstd-compressed files sharded by address
// prefix, with metadata and refs in badger. The badger handle is shared
// with the caller and stays open after Close.
type DiskStore struct {
	root   string
	meta   *storage.BadgerStore
	refs   *storage.RefStore
	cache  *lru.Cache[string, []byte]
	comp   *compressor
	logger *zap.Logger
}

// Options configures a DiskStore.
type Options struct {
	// Root is the directory object files live under.
	Root string
	// CacheSize is the number of decoded objects kept in memory.
	CacheSize int
	// Level is the zstd compression level (1=fastest, 3=best).
	Level int
	Logger *zap.Logger
}

// NewDiskStore opens an object store rooted at opts.Root, keeping its
// metadata in db.
func NewDiskStore(db *badger.DB, opts Options) (*DiskStore, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}

	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	if opts.CacheSize == 0 {
		opts.CacheSize = 1000
	}
	if opts.Level == 0 {
		opts.Level = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	comp, err := newCompressor(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	return &DiskStore{
		root:   opts.Root,
		meta:   storage.NewBadgerStore(db, "meta"),
		refs:   storage.NewRefStore(db, "ref"),
		cache:  cache,
		comp:   comp,
		logger: opts.Logger,
	}, nil
}

func (s *DiskStore) Put(data []byte) (string, error) {
	addr := object.Address(data)

	exists, err := s.meta.Has(addr)
	if err != nil {
		return "", fmt.Errorf("checking existence: %w", err)
	}
	if exists {
		return addr, nil
	}

	objectPath := s.objectPath(addr)
	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		return "", fmt.Errorf("creating object directory: %w", err)
	}

	if err := os.WriteFile(objectPath, s.comp.compress(data), 0o644); err != nil {
		return "", fmt.Errorf("writing object file: %w", err)
	}

	meta := &objectMeta{
		Hash:      addr,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}
	if err := s.meta.Create(meta); err != nil {
		// Cleanup on failure
		os.Remove(objectPath)
		return "", fmt.Errorf("storing metadata: %w", err)
	}

	s.cache.Add(addr, data)
	s.logger.Debug("stored object",
		zap.String("address", addr),
		zap.Int64("size", meta.Size))

	return addr, nil
}

func (s *DiskStore) Get(id string) ([]byte, error) {
	if !isValidAddress(id) {
		return nil, &errors.ObjectNotFoundError{ID: id}
	}

	if data, ok := s.cache.Get(id); ok {
		return data, nil
	}

	var meta objectMeta
	if err := s.meta.Get(id, &meta); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, &errors.ObjectNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("getting metadata: %w", err)
	}

	raw, err := os.ReadFile(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ObjectNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("reading object: %w", err)
	}

	data, err := s.comp.decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id, err)
	}

	// Verify the address before trusting the bytes.
	if object.Address(data) != id {
		return nil, fmt.Errorf("object %s: content hash mismatch", id)
	}

	s.cache.Add(id, data)
	return data, nil
}

func (s *DiskStore) Has(id string) (bool, error) {
	if !isValidAddress(id) {
		return false, nil
	}
	if s.cache.Contains(id) {
		return true, nil
	}
	return s.meta.Has(id)
}

func (s *DiskStore) GetRef(name string) (string, error) {
	return s.refs.Get(name)
}

func (s *DiskStore) UpdateRef(name, old, new string) error {
	return s.refs.Update(name, old, new)
}

// Close releases the compressor. The badger handle belongs to the
// caller and is left open.
func (s *DiskStore) Close() error {
	s.comp.close()
	return nil
}

func (s *DiskStore) objectPath(addr string) string {
	return filepath.Join(s.root, addr[:2], addr[2:])
}

func isValidAddress(addr string) bool {
	if len(addr) != 64 {
		return false
	}
	_, err := hex.DecodeString(addr)
	return err == nil
}
