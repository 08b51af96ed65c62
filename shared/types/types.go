// Package shared holds the contract between the storage backends and
// everything that consumes them.
package shared

import "time"

// RevisionID names a committed state of the store. The empty string means
// "no revision": an empty store's head, or a caller that does not care
// which revision an update is based on.
type RevisionID string

// FileType classifies what a stored path holds.
type FileType int

const (
	TextFile FileType = iota
	BinaryFile
	Directory
)

func (t FileType) String() string {
	switch t {
	case TextFile:
		return "text"
	case BinaryFile:
		return "binary"
	case Directory:
		return "directory"
	}
	return "unknown"
}

// File is a read-only view of one stored path at the revision it was
// fetched from.
type File interface {
	// Path is the full /-separated path of the file.
	Path() string

	// Name is the last path segment.
	Name() string

	FileType() FileType

	// Content returns the raw bytes of the file. Directories return nil.
	Content() ([]byte, error)

	IsDirectory() bool

	// LastModifiedRevision is the revision that last changed this path.
	LastModifiedRevision() RevisionID

	// LastModifiedBy is the author of that revision.
	LastModifiedBy() string

	// LastModifiedAt is the commit time of that revision.
	LastModifiedAt() time.Time
}

// UpdateOptions control how UpdateFile treats incoming content.
type UpdateOptions struct {
	// MatchLineEndings converts incoming text to the stored file's
	// line-ending style before merging.
	MatchLineEndings bool
}

// UpdateOption mutates UpdateOptions.
type UpdateOption func(*UpdateOptions)

// WithMatchedLineEndings makes the update adopt the stored file's
// line-ending style.
func WithMatchedLineEndings() UpdateOption {
	return func(o *UpdateOptions) {
		o.MatchLineEndings = true
	}
}

// NewUpdateOptions folds a list of options into a settings struct.
func NewUpdateOptions(opts ...UpdateOption) UpdateOptions {
	var o UpdateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DefaultCommitMessage is recorded when a caller supplies an empty or
// whitespace-only change description.
const DefaultCommitMessage = "No description of change given."

// FileStore is the versioned, path-addressed file store. Both backends
// satisfy it and behave identically through it.
type FileStore interface {
	// GetFile returns the file at path, or (nil, nil) when nothing exists
	// there. Absence is a normal result, not an error.
	GetFile(path string) (File, error)

	// ListDirectory returns the direct children of the directory at path,
	// sorted by name, or (nil, nil) when path is not a directory. The
	// empty path names the root, which always exists.
	ListDirectory(path string) ([]File, error)

	// UpdateFile writes content to path as a new revision. parent is the
	// revision the caller based its edit on; when the file moved on since
	// then the contents are merged three ways, and a conflicting merge
	// fails with UpdateConflictsError carrying the marked-up result. An
	// empty parent means "overwrite whatever is there now". An empty or
	// whitespace-only message is replaced with DefaultCommitMessage.
	UpdateFile(path string, content []byte, author string, parent RevisionID, message string, opts ...UpdateOption) error
}

// Revision describes one committed change.
type Revision struct {
	ID      RevisionID `json:"id"`
	Author  string     `json:"author"`
	Time    time.Time  `json:"time"`
	Message string     `json:"message"`
}

// RevisionLog exposes the history recorded by a FileStore.
type RevisionLog interface {
	// Head returns the current head revision, or "" for an empty store.
	Head() (RevisionID, error)

	// History lists the revisions that changed path, newest first. The
	// empty path means the whole store. limit caps the result when
	// positive.
	History(path string, limit int) ([]Revision, error)

	// DiffRevisions renders a unified text diff of path between two
	// revisions.
	DiffRevisions(path string, a, b RevisionID) (string, error)
}

// ImportEntry is one path in a bulk import.
type ImportEntry struct {
	Path    string
	Content []byte
	Dir     bool
}

// Importer bulk-populates a store. Imported content is stored verbatim,
// which is how files with unusual line endings enter a store.
type Importer interface {
	Import(entries []ImportEntry, author, message string) (RevisionID, error)
}
