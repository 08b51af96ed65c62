// Package object defines the immutable object model: blobs, trees and
// commits, their canonical encoding, and the content addresses derived
// from it.
package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Kind identifies an object type on the wire.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// Mode is the kind marker stored in a tree entry.
type Mode uint32

const (
	ModeFile Mode = 0o100644
	ModeDir  Mode = 0o040000
)

func (m Mode) IsDir() bool {
	return m == ModeDir
}

// TreeEntry names one child of a tree.
type TreeEntry struct {
	Name string `json:"name"`
	Mode Mode   `json:"mode"`
	ID   string `json:"id"`
}

// Tree is a directory listing. Entries are kept sorted by name so the
// encoding is deterministic.
type Tree struct {
	Entries []TreeEntry `json:"entries"`
}

// Lookup returns the entry named name.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// With returns a copy of the tree with entry inserted, replacing any
// existing entry of the same name. The receiver is not modified.
func (t *Tree) With(entry TreeEntry) *Tree {
	entries := make([]TreeEntry, 0, len(t.Entries)+1)
	replaced := false
	for _, e := range t.Entries {
		if e.Name == entry.Name {
			entries = append(entries, entry)
			replaced = true
			continue
		}
		entries = append(entries, e)
	}
	if !replaced {
		entries = append(entries, entry)
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name < entries[j].Name
		})
	}
	return &Tree{Entries: entries}
}

// Commit records one change: the root tree it produced, the commit it
// built on, and who made it.
type Commit struct {
	Tree    string    `json:"tree"`
	Parent  string    `json:"parent,omitempty"`
	Author  string    `json:"author"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Address is the content address of an encoded object: the hex sha256
// of its full encoded form.
func Address(encoded []byte) string {
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// encode prepends the "<kind> <size>\x00" header to a payload.
func encode(kind Kind, payload []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", kind, len(payload))
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	return append(out, payload...)
}

// EncodeBlob wraps raw file content as a blob object.
func EncodeBlob(data []byte) []byte {
	return encode(KindBlob, data)
}

// EncodeTree renders the canonical form of a tree. Entries are sorted
// by name regardless of the order they were added in.
func EncodeTree(t *Tree) ([]byte, error) {
	sorted := make([]TreeEntry, len(t.Entries))
	copy(sorted, t.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	payload, err := json.Marshal(&Tree{Entries: sorted})
	if err != nil {
		return nil, fmt.Errorf("encoding tree: %w", err)
	}
	return encode(KindTree, payload), nil
}

// EncodeCommit renders the canonical form of a commit.
func EncodeCommit(c *Commit) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding commit: %w", err)
	}
	return encode(KindCommit, payload), nil
}

// Decode splits an encoded object into its kind and payload, verifying
// the declared payload size.
func Decode(raw []byte) (Kind, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("malformed object: no header terminator")
	}
	header := string(raw[:nul])
	space := bytes.IndexByte([]byte(header), ' ')
	if space < 0 {
		return "", nil, fmt.Errorf("malformed object header %q", header)
	}
	kind := Kind(header[:space])
	switch kind {
	case KindBlob, KindTree, KindCommit:
	default:
		return "", nil, fmt.Errorf("unknown object kind %q", header[:space])
	}
	size, err := strconv.Atoi(header[space+1:])
	if err != nil {
		return "", nil, fmt.Errorf("malformed object size %q", header[space+1:])
	}
	payload := raw[nul+1:]
	if len(payload) != size {
		return "", nil, fmt.Errorf("object size mismatch: header says %d, payload is %d", size, len(payload))
	}
	return kind, payload, nil
}

// DecodeTree parses a tree payload.
func DecodeTree(payload []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("decoding tree: %w", err)
	}
	return &t, nil
}

// DecodeCommit parses a commit payload.
func DecodeCommit(payload []byte) (*Commit, error) {
	var c Commit
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decoding commit: %w", err)
	}
	return &c, nil
}
