// internal/filestore/snapshot.go
package filestore

import (
	"strings"
	"time"

	"vellum/internal/errors"
)

const (
	kindFile = "file"
	kindDir  = "dir"
)

// manifestEntry records one path in a snapshot: what kind of entry it
// is, the archived content hash for files, and the snapshot that last
// changed it.
type manifestEntry struct {
	Kind string `json:"kind"`
	Hash string `json:"hash,omitempty"`
	Rev  string `json:"rev"`
}

// snapshot is one recorded state of the working copy. Snapshots form a
// single parent chain; the manifest maps every tracked path to its
// entry. The root directory is implicit and never listed.
type snapshot struct {
	ID       string                   `json:"id"`
	Parent   string                   `json:"parent,omitempty"`
	Author   string                   `json:"author"`
	Time     time.Time                `json:"time"`
	Message  string                   `json:"message"`
	Manifest map[string]manifestEntry `json:"manifest"`
}

func (s *snapshot) GetID() string {
	return s.ID
}

func copyManifest(m map[string]manifestEntry) map[string]manifestEntry {
	out := make(map[string]manifestEntry, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// checkAncestors rejects paths that try to route through a file.
func checkAncestors(m map[string]manifestEntry, segments []string) error {
	for i := 1; i < len(segments); i++ {
		prefix := strings.Join(segments[:i], "/")
		if e, ok := m[prefix]; ok && e.Kind == kindFile {
			return &errors.FileExistsError{Path: prefix}
		}
	}
	return nil
}

// addAncestors records any missing parent directories of segments,
// stamped with the snapshot that creates them.
func addAncestors(m map[string]manifestEntry, segments []string, rev string) {
	for i := 1; i < len(segments); i++ {
		prefix := strings.Join(segments[:i], "/")
		if _, ok := m[prefix]; !ok {
			m[prefix] = manifestEntry{Kind: kindDir, Rev: rev}
		}
	}
}

// pathChanged reports whether key, or anything beneath it, differs
// between two manifests.
func pathChanged(cur, prev map[string]manifestEntry, key string) bool {
	if !sameEntry(cur, prev, key) {
		return true
	}
	prefix := key + "/"
	for k := range cur {
		if strings.HasPrefix(k, prefix) && !sameEntry(cur, prev, k) {
			return true
		}
	}
	for k := range prev {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := cur[k]; !ok {
			return true
		}
	}
	return false
}

func sameEntry(cur, prev map[string]manifestEntry, key string) bool {
	a, aok := cur[key]
	b, bok := prev[key]
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	return a.Kind == b.Kind && a.Hash == b.Hash
}
