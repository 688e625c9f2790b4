package undo

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, retention int) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	return NewManager(filepath.Join(root, ".odavl", "undo"), root, retention, nil), root
}

func TestSnapshotAndRestore(t *testing.T) {
	m, root := newTestManager(t, 10)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("original"), 0644))

	snap, err := m.Snapshot("fix-lint", []string{"a.ts", "created-later.ts"})
	require.NoError(t, err)
	require.NotNil(t, snap.Data["a.ts"])
	assert.Equal(t, "original", *snap.Data["a.ts"])
	assert.Nil(t, snap.Data["created-later.ts"], "missing file recorded as nil")

	// Simulate the recipe mutating one file and creating another
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("mutated"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "created-later.ts"), []byte("new"), 0644))

	restored, err := m.Restore(snap)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	data, err := os.ReadFile(filepath.Join(root, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	_, err = os.Stat(filepath.Join(root, "created-later.ts"))
	assert.True(t, os.IsNotExist(err), "file absent at snapshot time is deleted on restore")
}

func TestSnapshotExpandsDirectories(t *testing.T) {
	m, root := newTestManager(t, 10)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "nested", "b.ts"), []byte("b"), 0644))

	snap, err := m.Snapshot("fix-src", []string{"src"})
	require.NoError(t, err)
	require.NotNil(t, snap.Data[filepath.Join("src", "a.ts")])
	require.NotNil(t, snap.Data[filepath.Join("src", "nested", "b.ts")])
	assert.Equal(t, "a", *snap.Data[filepath.Join("src", "a.ts")])

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte("mutated"), 0644))

	_, err = m.Restore(snap)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, "src", "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestSnapshotDirectoryAndFileMix(t *testing.T) {
	m, root := newTestManager(t, 10)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte("a"), 0644))

	snap, err := m.Snapshot("r", []string{"src", filepath.Join("src", "a.ts"), "missing-dir"})
	require.NoError(t, err)
	assert.Len(t, snap.Data, 2, "directory expansion deduplicates against the explicit file")
	assert.Nil(t, snap.Data["missing-dir"], "nonexistent path recorded as nil")
}

func TestLatestAndRestoreByID(t *testing.T) {
	m, root := newTestManager(t, 10)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("v1"), 0644))

	first, err := m.Snapshot("r1", []string{"a.ts"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("v2"), 0644))
	_, err = m.Snapshot("r2", []string{"a.ts"})
	require.NoError(t, err)

	latest, err := m.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "r2", latest.RecipeID)

	// Restore a specific older snapshot
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("v3"), 0644))
	_, err = m.RestoreByID(first.ID)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestLatestWhenEmpty(t *testing.T) {
	m, _ := newTestManager(t, 10)
	snap, err := m.Latest()
	require.NoError(t, err)
	assert.Nil(t, snap)

	_, err = m.RestoreByID("")
	assert.Error(t, err)
}

func TestPruneKeepsNewest(t *testing.T) {
	m, root := newTestManager(t, 3)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("x"), 0644))

	var lastID string
	for i := 0; i < 5; i++ {
		snap, err := m.Snapshot(fmt.Sprintf("r%d", i), []string{"a.ts"})
		require.NoError(t, err)
		lastID = snap.ID
	}

	ids, err := m.List()
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, lastID, ids[0], "List returns newest first")
}
