// internal/filestore/workdir.go
package filestore

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vellum/internal/diff"
	"vellum/internal/errors"
	"vellum/internal/storage"
	"vellum/internal/store"
	"vellum/internal/validation"
	shared "vellum/shared/types"
)

// Workdir keeps plain files on disk and records their states as a
// chain of snapshot records. The working files stay directly editable;
// every update (and every observed external edit) produces a new
// snapshot, and merged content is also archived in a content-addressed
// blob store so earlier revisions remain readable. Revision ids are
// snapshot ids.
type Workdir struct {
	root   string
	db     *badger.DB
	blobs  *store.DiskStore
	snaps  *storage.BadgerStore
	refs   *storage.RefStore
	logger *zap.Logger
	mu     sync.Mutex
}

var _ Backend = (*Workdir)(nil)

func NewWorkdir(root string, db *badger.DB, blobs *store.DiskStore, logger *zap.Logger) *Workdir {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workdir{
		root:   root,
		db:     db,
		blobs:  blobs,
		snaps:  storage.NewBadgerStore(db, "snap"),
		refs:   storage.NewRefStore(db, "ref"),
		logger: logger,
	}
}

func (w *Workdir) Close() error {
	err := w.blobs.Close()
	if dbErr := w.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

func (w *Workdir) workingPath(key string) string {
	return filepath.Join(w.root, filepath.FromSlash(key))
}

// head returns the current head snapshot id and its manifest. A fresh
// store has no head and an empty manifest.
func (w *Workdir) head() (string, map[string]manifestEntry, error) {
	id, err := w.refs.Get(headRef)
	if err != nil {
		return "", nil, err
	}
	if id == "" {
		return "", map[string]manifestEntry{}, nil
	}
	snap, err := w.snapshot(id)
	if err != nil {
		return "", nil, err
	}
	return id, snap.Manifest, nil
}

func (w *Workdir) snapshot(id string) (*snapshot, error) {
	var snap snapshot
	if err := w.snaps.Get(id, &snap); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, &errors.ObjectNotFoundError{ID: id}
		}
		return nil, err
	}
	return &snap, nil
}

// readWorking reads the file's current content from disk, falling back
// to the archived blob when the working file has gone missing.
func (w *Workdir) readWorking(key string, entry manifestEntry) ([]byte, error) {
	content, err := os.ReadFile(w.workingPath(key))
	if err == nil {
		return content, nil
	}
	if os.IsNotExist(err) && entry.Hash != "" {
		return w.blobs.Get(entry.Hash)
	}
	return nil, err
}

func (w *Workdir) GetFile(p string) (shared.File, error) {
	segments, err := validation.Split(p)
	if err != nil {
		return nil, err
	}
	key := strings.Join(segments, "/")

	_, manifest, err := w.head()
	if err != nil {
		return nil, err
	}
	entry, ok := manifest[key]
	if !ok {
		return nil, nil
	}
	return w.fileAt(key, entry)
}

func (w *Workdir) ListDirectory(p string) ([]shared.File, error) {
	_, manifest, err := w.head()
	if err != nil {
		return nil, err
	}

	var prefix string
	if !validation.IsRoot(p) {
		segments, err := validation.Split(p)
		if err != nil {
			return nil, err
		}
		key := strings.Join(segments, "/")
		entry, ok := manifest[key]
		if !ok || entry.Kind != kindDir {
			return nil, nil
		}
		prefix = key + "/"
	}

	keys := make([]string, 0)
	for k := range manifest {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if strings.Contains(k[len(prefix):], "/") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	files := make([]shared.File, 0, len(keys))
	for _, k := range keys {
		f, err := w.fileAt(k, manifest[k])
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (w *Workdir) UpdateFile(p string, content []byte, author string, parent shared.RevisionID, message string, opts ...shared.UpdateOption) error {
	segments, err := validation.Split(p)
	if err != nil {
		return err
	}
	key := strings.Join(segments, "/")
	options := shared.NewUpdateOptions(opts...)
	if strings.TrimSpace(message) == "" {
		message = shared.DefaultCommitMessage
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	headID, manifest, err := w.head()
	if err != nil {
		return err
	}
	if err := checkAncestors(manifest, segments); err != nil {
		return err
	}

	entry, exists := manifest[key]
	var toStore []byte
	if !exists {
		toStore = newFileContent(key, content)
	} else {
		if entry.Kind == kindDir {
			return &errors.FileExistsError{Path: key, Dir: true}
		}
		current, err := w.readWorking(key, entry)
		if err != nil {
			return err
		}
		basis, err := w.basisContent(parent, key, current)
		if err != nil {
			return err
		}
		toStore, err = mergeUpdate(key, current, content, basis, shared.RevisionID(entry.Rev), options)
		if err != nil {
			return err
		}
	}

	abs := w.workingPath(key)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(abs, toStore, 0o644); err != nil {
		return err
	}
	hash, err := w.blobs.Put(toStore)
	if err != nil {
		return err
	}

	id := uuid.New().String()
	next := copyManifest(manifest)
	addAncestors(next, segments, id)
	newEntry := manifestEntry{Kind: kindFile, Hash: hash, Rev: id}
	if exists && entry.Hash == hash {
		// Content did not actually change, so the file keeps its
		// last-modified revision.
		newEntry.Rev = entry.Rev
	}
	next[key] = newEntry

	if err := w.createSnapshot(id, headID, author, message, next); err != nil {
		return err
	}
	w.logger.Debug("snapshot created",
		zap.String("path", key),
		zap.String("snapshot", id))
	return nil
}

func (w *Workdir) Head() (shared.RevisionID, error) {
	id, err := w.refs.Get(headRef)
	return shared.RevisionID(id), err
}

func (w *Workdir) History(p string, limit int) ([]shared.Revision, error) {
	var key string
	all := validation.IsRoot(p)
	if !all {
		segments, err := validation.Split(p)
		if err != nil {
			return nil, err
		}
		key = strings.Join(segments, "/")
	}

	id, err := w.refs.Get(headRef)
	if err != nil {
		return nil, err
	}

	revisions := []shared.Revision{}
	for id != "" {
		snap, err := w.snapshot(id)
		if err != nil {
			return nil, err
		}

		changed := true
		if !all {
			var parentManifest map[string]manifestEntry
			if snap.Parent != "" {
				parent, err := w.snapshot(snap.Parent)
				if err != nil {
					return nil, err
				}
				parentManifest = parent.Manifest
			}
			changed = pathChanged(snap.Manifest, parentManifest, key)
		}
		if changed {
			revisions = append(revisions, shared.Revision{
				ID:      shared.RevisionID(id),
				Author:  snap.Author,
				Time:    snap.Time,
				Message: snap.Message,
			})
			if limit > 0 && len(revisions) == limit {
				break
			}
		}
		id = snap.Parent
	}
	return revisions, nil
}

func (w *Workdir) DiffRevisions(p string, a, b shared.RevisionID) (string, error) {
	segments, err := validation.Split(p)
	if err != nil {
		return "", err
	}
	key := strings.Join(segments, "/")

	oldContent, err := w.contentAt(a, key)
	if err != nil {
		return "", err
	}
	newContent, err := w.contentAt(b, key)
	if err != nil {
		return "", err
	}
	return diff.Unified(key, oldContent, newContent), nil
}

func (w *Workdir) Import(entries []shared.ImportEntry, author, message string) (shared.RevisionID, error) {
	if strings.TrimSpace(message) == "" {
		message = shared.DefaultCommitMessage
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	headID, manifest, err := w.head()
	if err != nil {
		return "", err
	}

	// Parents sort before their children, so directories come up before
	// the files inside them.
	sorted := make([]shared.ImportEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	id := uuid.New().String()
	next := copyManifest(manifest)
	for _, entry := range sorted {
		segments, err := validation.Split(entry.Path)
		if err != nil {
			return "", err
		}
		key := strings.Join(segments, "/")
		if err := checkAncestors(next, segments); err != nil {
			return "", err
		}

		if entry.Dir {
			if existing, ok := next[key]; ok {
				if existing.Kind == kindDir {
					continue
				}
				return "", &errors.FileExistsError{Path: key}
			}
			if err := os.MkdirAll(w.workingPath(key), 0o755); err != nil {
				return "", err
			}
			addAncestors(next, segments, id)
			next[key] = manifestEntry{Kind: kindDir, Rev: id}
			continue
		}

		if existing, ok := next[key]; ok && existing.Kind == kindDir {
			return "", &errors.FileExistsError{Path: key, Dir: true}
		}
		// Imported content lands verbatim: no ending normalization, no
		// trailing newline enforcement.
		abs := w.workingPath(key)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(abs, entry.Content, 0o644); err != nil {
			return "", err
		}
		hash, err := w.blobs.Put(entry.Content)
		if err != nil {
			return "", err
		}
		addAncestors(next, segments, id)
		newEntry := manifestEntry{Kind: kindFile, Hash: hash, Rev: id}
		if existing, ok := next[key]; ok && existing.Hash == hash {
			newEntry.Rev = existing.Rev
		}
		next[key] = newEntry
	}

	if err := w.createSnapshot(id, headID, author, message, next); err != nil {
		return "", err
	}
	w.logger.Info("imported entries",
		zap.Int("count", len(entries)),
		zap.String("snapshot", id))
	return shared.RevisionID(id), nil
}

// SnapshotExternal records an edit made directly to a working file,
// outside UpdateFile. Unchanged content and removed files are ignored.
func (w *Workdir) SnapshotExternal(p string) error {
	segments, err := validation.Split(p)
	if err != nil {
		return err
	}
	key := strings.Join(segments, "/")

	w.mu.Lock()
	defer w.mu.Unlock()

	headID, manifest, err := w.head()
	if err != nil {
		return err
	}
	if err := checkAncestors(manifest, segments); err != nil {
		return err
	}
	if e, ok := manifest[key]; ok && e.Kind == kindDir {
		return &errors.FileExistsError{Path: key, Dir: true}
	}

	content, err := os.ReadFile(w.workingPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	hash, err := w.blobs.Put(content)
	if err != nil {
		return err
	}
	if e, ok := manifest[key]; ok && e.Hash == hash {
		return nil
	}

	id := uuid.New().String()
	next := copyManifest(manifest)
	addAncestors(next, segments, id)
	next[key] = manifestEntry{Kind: kindFile, Hash: hash, Rev: id}

	if err := w.createSnapshot(id, headID, "external", fmt.Sprintf("External edit of %s", key), next); err != nil {
		return err
	}
	w.logger.Debug("external edit recorded",
		zap.String("path", key),
		zap.String("snapshot", id))
	return nil
}

// createSnapshot persists the record and advances the head ref. The
// swap fails if another writer advanced the ref since parent was read.
func (w *Workdir) createSnapshot(id, parent, author, message string, manifest map[string]manifestEntry) error {
	snap := &snapshot{
		ID:       id,
		Parent:   parent,
		Author:   author,
		Time:     time.Now().UTC(),
		Message:  message,
		Manifest: manifest,
	}
	if err := w.snaps.Create(snap); err != nil {
		return err
	}
	return w.refs.Update(headRef, parent, id)
}

// basisContent is the file's content at the snapshot the caller based
// its edit on. An empty parent means the caller wants to overwrite, so
// the current content serves as basis; a parent the path was absent at
// gives an empty basis.
func (w *Workdir) basisContent(parent shared.RevisionID, key string, current []byte) ([]byte, error) {
	if parent == "" {
		return current, nil
	}
	snap, err := w.snapshot(string(parent))
	if err != nil {
		return nil, err
	}
	entry, ok := snap.Manifest[key]
	if !ok || entry.Kind == kindDir {
		return nil, nil
	}
	return w.blobs.Get(entry.Hash)
}

// contentAt is the file's content at one snapshot, read from the blob
// archive; absent paths give empty content.
func (w *Workdir) contentAt(rev shared.RevisionID, key string) ([]byte, error) {
	if rev == "" {
		return nil, nil
	}
	snap, err := w.snapshot(string(rev))
	if err != nil {
		return nil, err
	}
	entry, ok := snap.Manifest[key]
	if !ok {
		return nil, nil
	}
	if entry.Kind == kindDir {
		return nil, fmt.Errorf("%s is a directory at revision %s", key, rev)
	}
	return w.blobs.Get(entry.Hash)
}

func (w *Workdir) fileAt(key string, entry manifestEntry) (shared.File, error) {
	snap, err := w.snapshot(entry.Rev)
	if err != nil {
		return nil, err
	}

	view := &fileView{
		path:    key,
		rev:     shared.RevisionID(entry.Rev),
		author:  snap.Author,
		modTime: snap.Time,
	}
	if entry.Kind == kindDir {
		view.fileType = shared.Directory
		// A directory's last modification is the newest change anywhere
		// below it, not the snapshot that created its entry.
		revs, err := w.History(key, 1)
		if err != nil {
			return nil, err
		}
		if len(revs) > 0 {
			view.rev = revs[0].ID
			view.author = revs[0].Author
			view.modTime = revs[0].Time
		}
		return view, nil
	}

	text, known := isTextName(key)
	if !known {
		content, err := w.readWorking(key, entry)
		if err != nil {
			return nil, err
		}
		text = isTextContent(content)
	}
	if text {
		view.fileType = shared.TextFile
	} else {
		view.fileType = shared.BinaryFile
	}

	e := entry
	view.load = func() ([]byte, error) { return w.readWorking(key, e) }
	return view, nil
}
