// internal/filestore/commitstore.go
package filestore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"vellum/internal/diff"
	"vellum/internal/errors"
	"vellum/internal/object"
	"vellum/internal/store"
	"vellum/internal/tree"
	"vellum/internal/validation"
	shared "vellum/shared/types"
)

// headRef is the single ref a store advances.
const headRef = "HEAD"

// CommitStore keeps every revision as an immutable commit pointing at
// an immutable tree. An update never touches existing objects: it
// writes new blobs and trees bottom-up and advances the head ref with
// compare-and-swap. Revision ids are commit addresses.
type CommitStore struct {
	store  store.Store
	objs   object.Objects
	ref    string
	db     *badger.DB // owned when opened via Open, nil otherwise
	logger *zap.Logger
	mu     sync.Mutex
}

var _ Backend = (*CommitStore)(nil)

func NewCommitStore(s store.Store, logger *zap.Logger) *CommitStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitStore{
		store:  s,
		objs:   object.NewObjects(s),
		ref:    headRef,
		logger: logger,
	}
}

func (s *CommitStore) Close() error {
	err := s.store.Close()
	if s.db != nil {
		if dbErr := s.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

// head returns the current head commit id and its root tree id, both ""
// for an empty store.
func (s *CommitStore) head() (string, string, error) {
	id, err := s.store.GetRef(s.ref)
	if err != nil {
		return "", "", err
	}
	if id == "" {
		return "", "", nil
	}
	c, err := s.objs.Commit(id)
	if err != nil {
		return "", "", err
	}
	return id, c.Tree, nil
}

func (s *CommitStore) GetFile(p string) (shared.File, error) {
	segments, err := validation.Split(p)
	if err != nil {
		return nil, err
	}

	head, root, err := s.head()
	if err != nil {
		return nil, err
	}
	if head == "" {
		return nil, nil
	}

	entry, ok, err := tree.Resolve(s.store, root, segments)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.fileAt(head, segments, entry)
}

func (s *CommitStore) ListDirectory(p string) ([]shared.File, error) {
	head, root, err := s.head()
	if err != nil {
		return nil, err
	}

	var (
		dirID    string
		segments []string
	)
	if validation.IsRoot(p) {
		// The root directory exists even in an empty store.
		if head == "" {
			return []shared.File{}, nil
		}
		dirID = root
	} else {
		segments, err = validation.Split(p)
		if err != nil {
			return nil, err
		}
		if head == "" {
			return nil, nil
		}
		entry, ok, err := tree.Resolve(s.store, root, segments)
		if err != nil {
			return nil, err
		}
		if !ok || !entry.Mode.IsDir() {
			return nil, nil
		}
		dirID = entry.ID
	}

	t, err := s.objs.Tree(dirID)
	if err != nil {
		return nil, err
	}

	// Tree entries are stored name-sorted already.
	files := make([]shared.File, 0, len(t.Entries))
	for _, entry := range t.Entries {
		childSegments := append(append([]string{}, segments...), entry.Name)
		f, err := s.fileAt(head, childSegments, entry)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *CommitStore) UpdateFile(p string, content []byte, author string, parent shared.RevisionID, message string, opts ...shared.UpdateOption) error {
	segments, err := validation.Split(p)
	if err != nil {
		return err
	}
	key := strings.Join(segments, "/")
	options := shared.NewUpdateOptions(opts...)
	if strings.TrimSpace(message) == "" {
		message = shared.DefaultCommitMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head, root, err := s.head()
	if err != nil {
		return err
	}

	var (
		entry object.TreeEntry
		ok    bool
	)
	if head != "" {
		entry, ok, err = tree.Resolve(s.store, root, segments)
		if err != nil {
			return err
		}
	}

	var toStore []byte
	if !ok {
		toStore = newFileContent(key, content)
	} else {
		if entry.Mode.IsDir() {
			return &errors.FileExistsError{Path: key, Dir: true}
		}
		current, err := s.objs.Blob(entry.ID)
		if err != nil {
			return err
		}
		basis, err := s.basisContent(parent, segments, current)
		if err != nil {
			return err
		}
		currentRev, _, err := s.lastModified(head, segments)
		if err != nil {
			return err
		}
		toStore, err = mergeUpdate(key, current, content, basis, currentRev, options)
		if err != nil {
			return err
		}
	}

	blobID, err := s.store.Put(object.EncodeBlob(toStore))
	if err != nil {
		return err
	}
	newRoot, err := tree.Build(s.store, root, segments, object.ModeFile, blobID)
	if err != nil {
		return err
	}

	id, err := s.commit(head, newRoot, author, message)
	if err != nil {
		return err
	}
	s.logger.Debug("committed update",
		zap.String("path", key),
		zap.String("revision", id))
	return nil
}

func (s *CommitStore) Head() (shared.RevisionID, error) {
	id, err := s.store.GetRef(s.ref)
	return shared.RevisionID(id), err
}

func (s *CommitStore) History(p string, limit int) ([]shared.Revision, error) {
	var (
		segments []string
		err      error
	)
	if !validation.IsRoot(p) {
		segments, err = validation.Split(p)
		if err != nil {
			return nil, err
		}
	}

	head, _, err := s.head()
	if err != nil {
		return nil, err
	}

	revisions := []shared.Revision{}
	cid := head
	for cid != "" {
		c, err := s.objs.Commit(cid)
		if err != nil {
			return nil, err
		}

		changed := true
		if segments != nil {
			changed, err = s.changedIn(c, segments)
			if err != nil {
				return nil, err
			}
		}
		if changed {
			revisions = append(revisions, shared.Revision{
				ID:      shared.RevisionID(cid),
				Author:  c.Author,
				Time:    c.Time,
				Message: c.Message,
			})
			if limit > 0 && len(revisions) == limit {
				break
			}
		}
		cid = c.Parent
	}
	return revisions, nil
}

func (s *CommitStore) DiffRevisions(p string, a, b shared.RevisionID) (string, error) {
	segments, err := validation.Split(p)
	if err != nil {
		return "", err
	}
	key := strings.Join(segments, "/")

	oldContent, err := s.contentAt(a, segments)
	if err != nil {
		return "", err
	}
	newContent, err := s.contentAt(b, segments)
	if err != nil {
		return "", err
	}
	return diff.Unified(key, oldContent, newContent), nil
}

func (s *CommitStore) Import(entries []shared.ImportEntry, author, message string) (shared.RevisionID, error) {
	if strings.TrimSpace(message) == "" {
		message = shared.DefaultCommitMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head, root, err := s.head()
	if err != nil {
		return "", err
	}

	// Parents sort before their children, so directories come up before
	// the files inside them.
	sorted := make([]shared.ImportEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	for _, entry := range sorted {
		segments, err := validation.Split(entry.Path)
		if err != nil {
			return "", err
		}

		if entry.Dir {
			if root != "" {
				existing, ok, err := tree.Resolve(s.store, root, segments)
				if err != nil {
					return "", err
				}
				if ok && existing.Mode.IsDir() {
					continue
				}
			}
			emptyID, err := tree.EmptyTree(s.store)
			if err != nil {
				return "", err
			}
			root, err = tree.Build(s.store, root, segments, object.ModeDir, emptyID)
			if err != nil {
				return "", err
			}
			continue
		}

		// Imported content is stored verbatim: no ending normalization,
		// no trailing newline enforcement.
		blobID, err := s.store.Put(object.EncodeBlob(entry.Content))
		if err != nil {
			return "", err
		}
		root, err = tree.Build(s.store, root, segments, object.ModeFile, blobID)
		if err != nil {
			return "", err
		}
	}

	if root == "" {
		root, err = tree.EmptyTree(s.store)
		if err != nil {
			return "", err
		}
	}

	id, err := s.commit(head, root, author, message)
	if err != nil {
		return "", err
	}
	s.logger.Info("imported entries",
		zap.Int("count", len(entries)),
		zap.String("revision", id))
	return shared.RevisionID(id), nil
}

// commit writes a commit object on top of parent and advances the head
// ref. The swap fails if another writer advanced the ref since parent
// was read.
func (s *CommitStore) commit(parent, root, author, message string) (string, error) {
	encoded, err := object.EncodeCommit(&object.Commit{
		Tree:    root,
		Parent:  parent,
		Author:  author,
		Time:    time.Now().UTC(),
		Message: message,
	})
	if err != nil {
		return "", err
	}
	id, err := s.store.Put(encoded)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateRef(s.ref, parent, id); err != nil {
		return "", err
	}
	return id, nil
}

// basisContent is the file's content at the revision the caller based
// its edit on. An empty parent means the caller wants to overwrite, so
// the current content serves as basis; a parent the path was absent at
// gives an empty basis.
func (s *CommitStore) basisContent(parent shared.RevisionID, segments []string, current []byte) ([]byte, error) {
	if parent == "" {
		return current, nil
	}
	c, err := s.objs.Commit(string(parent))
	if err != nil {
		return nil, err
	}
	entry, ok, err := tree.Resolve(s.store, c.Tree, segments)
	if err != nil {
		return nil, err
	}
	if !ok || entry.Mode.IsDir() {
		return nil, nil
	}
	return s.objs.Blob(entry.ID)
}

// entryToken identifies a path's state within one commit for change
// detection: present or not, and which object it points at.
func (s *CommitStore) entryToken(rootID string, segments []string) (string, bool, error) {
	if rootID == "" {
		return "", false, nil
	}
	entry, ok, err := tree.Resolve(s.store, rootID, segments)
	if err != nil || !ok {
		return "", false, err
	}
	return entry.ID, true, nil
}

// changedIn reports whether commit c changed the path, judged against
// its parent.
func (s *CommitStore) changedIn(c *object.Commit, segments []string) (bool, error) {
	curID, curOK, err := s.entryToken(c.Tree, segments)
	if err != nil {
		return false, err
	}
	var parentTree string
	if c.Parent != "" {
		pc, err := s.objs.Commit(c.Parent)
		if err != nil {
			return false, err
		}
		parentTree = pc.Tree
	}
	parID, parOK, err := s.entryToken(parentTree, segments)
	if err != nil {
		return false, err
	}
	return curID != parID || curOK != parOK, nil
}

// lastModified walks back from head to the newest commit that changed
// the path.
func (s *CommitStore) lastModified(head string, segments []string) (shared.RevisionID, *object.Commit, error) {
	cid := head
	for cid != "" {
		c, err := s.objs.Commit(cid)
		if err != nil {
			return "", nil, err
		}
		changed, err := s.changedIn(c, segments)
		if err != nil {
			return "", nil, err
		}
		if changed {
			return shared.RevisionID(cid), c, nil
		}
		cid = c.Parent
	}
	return "", nil, fmt.Errorf("no revision modifies %s", strings.Join(segments, "/"))
}

// contentAt is the file's content at one revision; absent paths give
// empty content.
func (s *CommitStore) contentAt(rev shared.RevisionID, segments []string) ([]byte, error) {
	if rev == "" {
		return nil, nil
	}
	c, err := s.objs.Commit(string(rev))
	if err != nil {
		return nil, err
	}
	entry, ok, err := tree.Resolve(s.store, c.Tree, segments)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if entry.Mode.IsDir() {
		return nil, fmt.Errorf("%s is a directory at revision %s", strings.Join(segments, "/"), rev)
	}
	return s.objs.Blob(entry.ID)
}

func (s *CommitStore) fileAt(head string, segments []string, entry object.TreeEntry) (shared.File, error) {
	rev, c, err := s.lastModified(head, segments)
	if err != nil {
		return nil, err
	}

	view := &fileView{
		path:    strings.Join(segments, "/"),
		rev:     rev,
		author:  c.Author,
		modTime: c.Time,
	}
	if entry.Mode.IsDir() {
		view.fileType = shared.Directory
		return view, nil
	}

	text, known := isTextName(view.path)
	if !known {
		content, err := s.objs.Blob(entry.ID)
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

	blobID := entry.ID
	view.load = func() ([]byte, error) { return s.objs.Blob(blobID) }
	return view, nil
}
