// Package tree resolves paths against immutable tree objects and builds
// the new tree chain an update needs. Existing objects are never
// touched: a write produces fresh trees from the changed leaf up to a
// fresh root, and everything off that path is shared with the previous
// root by id.
package tree

import (
	"fmt"
	"strings"

	"vellum/internal/errors"
	"vellum/internal/object"
)

// Store is the slice of the object store the builder needs.
type Store interface {
	Get(id string) ([]byte, error)
	Put(data []byte) (string, error)
}

// Resolve walks segments down from the tree rootID and returns the entry
// at the path. ok is false when any segment is missing or an
// intermediate segment is not a directory; for reads that is plain
// absence, not an error.
func Resolve(s Store, rootID string, segments []string) (object.TreeEntry, bool, error) {
	objs := object.NewObjects(s)

	current, err := objs.Tree(rootID)
	if err != nil {
		return object.TreeEntry{}, false, err
	}

	for i, seg := range segments {
		entry, ok := current.Lookup(seg)
		if !ok {
			return object.TreeEntry{}, false, nil
		}
		if i == len(segments)-1 {
			return entry, true, nil
		}
		if !entry.Mode.IsDir() {
			return object.TreeEntry{}, false, nil
		}
		current, err = objs.Tree(entry.ID)
		if err != nil {
			return object.TreeEntry{}, false, err
		}
	}
	return object.TreeEntry{}, false, nil
}

// Build writes an entry of the given mode and object id at segments
// under rootID and returns the id of the new root tree. Missing
// intermediate directories are created; rootID "" starts from an empty
// root. The walk fails with FileExistsError when an ancestor segment
// exists as a file, or when the leaf already exists with the other
// kind.
func Build(s Store, rootID string, segments []string, mode object.Mode, id string) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("cannot build an entry at the root itself")
	}
	objs := object.NewObjects(s)

	// Collect the tree holding each path level, synthesizing empty
	// trees where the path does not exist yet.
	chain := make([]*object.Tree, len(segments))
	current := &object.Tree{}
	if rootID != "" {
		t, err := objs.Tree(rootID)
		if err != nil {
			return "", err
		}
		current = t
	}
	chain[0] = current

	for i := 0; i < len(segments)-1; i++ {
		next := &object.Tree{}
		if entry, ok := current.Lookup(segments[i]); ok {
			if !entry.Mode.IsDir() {
				return "", &errors.FileExistsError{Path: strings.Join(segments[:i+1], "/")}
			}
			t, err := objs.Tree(entry.ID)
			if err != nil {
				return "", err
			}
			next = t
		}
		chain[i+1] = next
		current = next
	}

	leafName := segments[len(segments)-1]
	if entry, ok := current.Lookup(leafName); ok && entry.Mode.IsDir() != mode.IsDir() {
		return "", &errors.FileExistsError{
			Path: strings.Join(segments, "/"),
			Dir:  entry.Mode.IsDir(),
		}
	}

	// Rebuild bottom-up: each level gets a new tree pointing at the new
	// child below it.
	childMode, childID, name := mode, id, leafName
	for i := len(chain) - 1; i >= 0; i-- {
		updated := chain[i].With(object.TreeEntry{Name: name, Mode: childMode, ID: childID})
		encoded, err := object.EncodeTree(updated)
		if err != nil {
			return "", err
		}
		newID, err := s.Put(encoded)
		if err != nil {
			return "", fmt.Errorf("writing tree: %w", err)
		}
		childMode, childID = object.ModeDir, newID
		if i > 0 {
			name = segments[i-1]
		}
	}
	return childID, nil
}

// EmptyTree writes the canonical empty tree and returns its id.
func EmptyTree(s Store) (string, error) {
	encoded, err := object.EncodeTree(&object.Tree{})
	if err != nil {
		return "", err
	}
	return s.Put(encoded)
}
