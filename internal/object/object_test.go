package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobRoundTrip(t *testing.T) {
	raw := EncodeBlob([]byte("hello world\n"))

	kind, payload, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindBlob, kind)
	assert.Equal(t, []byte("hello world\n"), payload)
}

func TestEmptyBlob(t *testing.T) {
	raw := EncodeBlob(nil)

	kind, payload, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindBlob, kind)
	assert.Empty(t, payload)
}

func TestTreeRoundTrip(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "b.txt", Mode: ModeFile, ID: "id-b"},
		{Name: "a", Mode: ModeDir, ID: "id-a"},
	}}

	raw, err := EncodeTree(tree)
	require.NoError(t, err)

	kind, payload, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindTree, kind)

	decoded, err := DecodeTree(payload)
	require.NoError(t, err)

	// Canonical form is name-sorted.
	require.Len(t, decoded.Entries, 2)
	assert.Equal(t, "a", decoded.Entries[0].Name)
	assert.Equal(t, "b.txt", decoded.Entries[1].Name)
}

func TestTreeEncodingIsDeterministic(t *testing.T) {
	ab := &Tree{Entries: []TreeEntry{
		{Name: "a", Mode: ModeFile, ID: "id-a"},
		{Name: "b", Mode: ModeFile, ID: "id-b"},
	}}
	ba := &Tree{Entries: []TreeEntry{
		{Name: "b", Mode: ModeFile, ID: "id-b"},
		{Name: "a", Mode: ModeFile, ID: "id-a"},
	}}

	rawAB, err := EncodeTree(ab)
	require.NoError(t, err)
	rawBA, err := EncodeTree(ba)
	require.NoError(t, err)

	assert.Equal(t, Address(rawAB), Address(rawBA))
}

func TestCommitRoundTrip(t *testing.T) {
	commit := &Commit{
		Tree:    "tree-id",
		Parent:  "parent-id",
		Author:  "eric",
		Time:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Message: "first change",
	}

	raw, err := EncodeCommit(commit)
	require.NoError(t, err)

	kind, payload, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindCommit, kind)

	decoded, err := DecodeCommit(payload)
	require.NoError(t, err)
	assert.Equal(t, commit.Tree, decoded.Tree)
	assert.Equal(t, commit.Parent, decoded.Parent)
	assert.Equal(t, commit.Author, decoded.Author)
	assert.True(t, commit.Time.Equal(decoded.Time))
	assert.Equal(t, commit.Message, decoded.Message)
}

func TestAddressDiffersByKind(t *testing.T) {
	blob := EncodeBlob([]byte("x"))
	other := EncodeBlob([]byte("y"))

	assert.NotEqual(t, Address(blob), Address(other))
	assert.Equal(t, Address(blob), Address(EncodeBlob([]byte("x"))))
}

func TestDecodeRejectsMalformedObjects(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"no terminator", []byte("blob 3abc")},
		{"no space", []byte("blob3\x00abc")},
		{"unknown kind", []byte("branch 3\x00abc")},
		{"bad size", []byte("blob x\x00abc")},
		{"size mismatch", []byte("blob 5\x00abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestTreeWith(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "b", Mode: ModeFile, ID: "old-b"},
	}}

	t.Run("insert keeps order", func(t *testing.T) {
		got := tree.With(TreeEntry{Name: "a", Mode: ModeDir, ID: "id-a"})
		require.Len(t, got.Entries, 2)
		assert.Equal(t, "a", got.Entries[0].Name)
		assert.Equal(t, "b", got.Entries[1].Name)
		// Receiver untouched.
		assert.Len(t, tree.Entries, 1)
	})

	t.Run("replace same name", func(t *testing.T) {
		got := tree.With(TreeEntry{Name: "b", Mode: ModeFile, ID: "new-b"})
		require.Len(t, got.Entries, 1)
		assert.Equal(t, "new-b", got.Entries[0].ID)
	})
}

type mapSource map[string][]byte

func (m mapSource) Get(id string) ([]byte, error) {
	return m[id], nil
}

func TestObjectsKindMismatch(t *testing.T) {
	blob := EncodeBlob([]byte("content"))
	src := mapSource{"some-id": blob}
	objs := NewObjects(src)

	_, err := objs.Tree("some-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want tree")

	got, err := objs.Blob("some-id")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), got)
}
