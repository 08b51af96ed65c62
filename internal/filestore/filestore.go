// Package filestore provides the two interchangeable store
// implementations behind the shared contract: CommitStore keeps every
// revision as an immutable object graph, Workdir keeps a mutable
// working copy with snapshot history. Callers pick one at init time and
// use both the same way.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"vellum/internal/config"
	"vellum/internal/store"
	shared "vellum/shared/types"
)

// vellumDir is the marker directory holding a store's database, objects
// and config.
const vellumDir = ".vellum"

// Backend is the full surface both implementations provide.
type Backend interface {
	shared.FileStore
	shared.RevisionLog
	shared.Importer
	Close() error
}

// Init lays out a new store at root for the configured backend. It
// fails when the directory is already initialized.
func Init(root string, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}

	marker := filepath.Join(absRoot, vellumDir)
	if _, err := os.Stat(marker); err == nil {
		return fmt.Errorf("store already initialized at %s", absRoot)
	}

	dirs := []string{
		filepath.Join(marker, "db"),
	}
	switch cfg.Backend {
	case config.BackendCommit:
		dirs = append(dirs, filepath.Join(marker, "objects"))
	case config.BackendWorkdir:
		dirs = append(dirs, filepath.Join(marker, "blobs"))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	return cfg.Save(config.Path(absRoot))
}

// Open connects to the store rooted at root, choosing the
// implementation recorded at init time.
func Open(root string, logger *zap.Logger) (Backend, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}

	cfg, err := config.Load(config.Path(absRoot))
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	db, err := openDB(absRoot)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendCommit:
		objects, err := store.NewDiskStore(db, store.Options{
			Root:      filepath.Join(absRoot, vellumDir, "objects"),
			CacheSize: cfg.Cache.Size,
			Level:     cfg.Compression.Level,
			Logger:    logger,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("opening object store: %w", err)
		}
		cs := NewCommitStore(objects, logger)
		cs.db = db
		return cs, nil

	case config.BackendWorkdir:
		blobs, err := store.NewDiskStore(db, store.Options{
			Root:      filepath.Join(absRoot, vellumDir, "blobs"),
			CacheSize: cfg.Cache.Size,
			Level:     cfg.Compression.Level,
			Logger:    logger,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("opening blob archive: %w", err)
		}
		return NewWorkdir(absRoot, db, blobs, logger), nil

	default:
		db.Close()
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openDB(root string) (*badger.DB, error) {
	opts := badger.DefaultOptions(filepath.Join(root, vellumDir, "db"))
	opts.Logger = nil // Disable logging noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// FindRoot searches upward from startDir for a directory containing the
// store marker.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, vellumDir)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("store root not found")
}
