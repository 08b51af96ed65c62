package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vellum/internal/config"
)

func TestInitRefusesSecondInit(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, Init(root, config.Default()))

	err := Init(root, config.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInitRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "cloud"

	err := Init(t.TempDir(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestOpenPicksConfiguredBackend(t *testing.T) {
	t.Run("Commit", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, Init(root, config.Default()))

		b, err := Open(root, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, b.Close()) })

		_, ok := b.(*CommitStore)
		assert.True(t, ok)
	})

	t.Run("Workdir", func(t *testing.T) {
		root := t.TempDir()
		cfg := config.Default()
		cfg.Backend = config.BackendWorkdir
		require.NoError(t, Init(root, cfg))

		b, err := Open(root, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, b.Close()) })

		_, ok := b.(*Workdir)
		assert.True(t, ok)
	})
}

func TestReopenedStoreKeepsData(t *testing.T) {
	for _, backend := range []string{config.BackendCommit, config.BackendWorkdir} {
		t.Run(backend, func(t *testing.T) {
			root := t.TempDir()
			cfg := config.Default()
			cfg.Backend = backend
			require.NoError(t, Init(root, cfg))

			b, err := Open(root, zap.NewNop())
			require.NoError(t, err)
			rev := mustUpdate(t, b, "page.txt", "persisted\n", "alice", "", "")
			require.NoError(t, b.Close())

			b, err = Open(root, zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, b.Close()) })

			head, err := b.Head()
			require.NoError(t, err)
			assert.Equal(t, rev, head)
			assert.Equal(t, "persisted\n", mustContent(t, b, "page.txt"))
		})
	}
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Init(root, config.Default()))

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)

	_, err = FindRoot(t.TempDir())
	require.Error(t, err)
}
