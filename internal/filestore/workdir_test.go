package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vellum/internal/config"
	shared "vellum/shared/types"
)

func openWorkdir(t *testing.T) (*Workdir, string) {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Backend = config.BackendWorkdir
	require.NoError(t, Init(root, cfg))

	b, err := Open(root, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	wd, ok := b.(*Workdir)
	require.True(t, ok)
	return wd, root
}

func TestWorkdirKeepsPlainFiles(t *testing.T) {
	wd, root := openWorkdir(t)

	mustUpdate(t, wd, "docs/page.txt", "plain text", "alice", "", "")

	raw, err := os.ReadFile(filepath.Join(root, "docs", "page.txt"))
	require.NoError(t, err)
	assert.Equal(t, "plain text\n", string(raw))

	info, err := os.Stat(filepath.Join(root, "docs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWorkdirReadsLiveDiskContent(t *testing.T) {
	wd, root := openWorkdir(t)

	mustUpdate(t, wd, "page.txt", "stored\n", "alice", "", "")

	// The working file is the source of truth, snapshotted or not.
	require.NoError(t, os.WriteFile(filepath.Join(root, "page.txt"), []byte("edited by hand\n"), 0o644))
	assert.Equal(t, "edited by hand\n", mustContent(t, wd, "page.txt"))
}

func TestWorkdirFallsBackToArchive(t *testing.T) {
	wd, root := openWorkdir(t)

	mustUpdate(t, wd, "page.txt", "archived content\n", "alice", "", "")

	require.NoError(t, os.Remove(filepath.Join(root, "page.txt")))
	assert.Equal(t, "archived content\n", mustContent(t, wd, "page.txt"))
}

func TestWorkdirImportWritesWorkingFiles(t *testing.T) {
	wd, root := openWorkdir(t)

	_, err := wd.Import([]shared.ImportEntry{
		{Path: "notes/today.txt", Content: []byte("dos line\r\n")},
	}, "importer", "")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(root, "notes", "today.txt"))
	require.NoError(t, err)
	assert.Equal(t, "dos line\r\n", string(raw))
}

func TestWorkdirDiffReadsArchivedContent(t *testing.T) {
	wd, root := openWorkdir(t)

	first := mustUpdate(t, wd, "page.txt", "v1\n", "alice", "", "")
	second := mustUpdate(t, wd, "page.txt", "v2\n", "alice", first, "")

	// A later hand edit must not leak into the revision diff.
	require.NoError(t, os.WriteFile(filepath.Join(root, "page.txt"), []byte("v3 by hand\n"), 0o644))

	d, err := wd.DiffRevisions("page.txt", first, second)
	require.NoError(t, err)
	assert.Contains(t, d, "-v1\n")
	assert.Contains(t, d, "+v2\n")
	assert.NotContains(t, d, "v3 by hand")
}

func TestSnapshotExternal(t *testing.T) {
	wd, root := openWorkdir(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.txt"), []byte("jotted\n"), 0o644))
	require.NoError(t, wd.SnapshotExternal("note.txt"))

	head, err := wd.Head()
	require.NoError(t, err)
	require.NotEmpty(t, head)

	hist, err := wd.History("note.txt", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "external", hist[0].Author)
	assert.Equal(t, "External edit of note.txt", hist[0].Message)

	t.Run("UnchangedContentIsNotRecorded", func(t *testing.T) {
		require.NoError(t, wd.SnapshotExternal("note.txt"))

		hist, err := wd.History("", 0)
		require.NoError(t, err)
		assert.Len(t, hist, 1)
	})

	t.Run("MissingFileIsIgnored", func(t *testing.T) {
		require.NoError(t, wd.SnapshotExternal("ghost.txt"))

		f, err := wd.GetFile("ghost.txt")
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("ChangedContentIsRecorded", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "note.txt"), []byte("jotted more\n"), 0o644))
		require.NoError(t, wd.SnapshotExternal("note.txt"))

		hist, err := wd.History("note.txt", 0)
		require.NoError(t, err)
		assert.Len(t, hist, 2)
		assert.Equal(t, "jotted more\n", mustContent(t, wd, "note.txt"))
	})
}
