// Package errors defines the failure modes a file store can report.
// Everything else that can go wrong (I/O, corruption) is wrapped with
// plain fmt.Errorf and surfaces as an ordinary error.
package errors

import (
	"fmt"

	shared "vellum/shared/types"
)

// FileExistsError reports a structural collision: an ancestor of the
// target path is already a file, or the target itself exists with the
// wrong kind.
type FileExistsError struct {
	Path string
	// Dir is true when the colliding entry is a directory.
	Dir bool
}

func (e *FileExistsError) Error() string {
	if e.Dir {
		return fmt.Sprintf("file %s exists and is a directory", e.Path)
	}
	return fmt.Sprintf("file %s exists and is not a directory", e.Path)
}

// UpdateConflictsError reports a three-way merge that produced conflicts.
// Content is the full merged text with conflict markers; BasisRev is the
// revision that actually last modified the file, so the caller can retry
// against it.
type UpdateConflictsError struct {
	Path     string
	Content  []byte
	BasisRev shared.RevisionID
}

func (e *UpdateConflictsError) Error() string {
	return fmt.Sprintf("update of %s conflicts with revision %s", e.Path, e.BasisRev)
}

// ObjectNotFoundError reports a dangling reference: a revision or object
// id that the store has no record of. Unlike a missing path this is
// always an error, never a normal none-result.
type ObjectNotFoundError struct {
	ID string
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("object %s not found", e.ID)
}

// PathError reports a malformed path. Well-formed paths that simply do
// not exist are not errors.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}
