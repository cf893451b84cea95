package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	// Test MkdirAll
	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, lfs.MkdirAll(dir, 0755))

	// Test OpenFile (Create)
	fpath := filepath.Join(dir, "test.txt")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	assert.Equal(t, fpath, f.Name())

	// Write
	_, err = f.Write([]byte("hello"))
	assert.NoError(t, err)

	// Sync
	assert.NoError(t, f.Sync())

	// Stat via File
	info, err := f.Stat()
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	assert.NoError(t, f.Close())

	// ReadDir
	entries, err := lfs.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	// Rename + SyncDir
	newPath := filepath.Join(dir, "renamed.txt")
	assert.NoError(t, lfs.Rename(fpath, newPath))
	assert.NoError(t, lfs.SyncDir(dir))

	info2, err := lfs.Stat(newPath)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info2.Size())

	// Remove
	assert.NoError(t, lfs.Remove(newPath))
	_, err = lfs.Stat(newPath)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_GlobalLimit(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})

	ffs.SetLimit(5) // Fail after 5 bytes

	fpath := filepath.Join(tmp, "faulty.txt")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	// Write 5 bytes - OK
	n, err := f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	// Write 1 byte - Fail
	n, err = f.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, n)

	assert.Equal(t, int64(5), ffs.Written())
	require.NoError(t, f.Close())

	// Verify other methods delegate
	assert.NoError(t, ffs.Rename(fpath, fpath+".renamed"))
	_, err = ffs.Stat(fpath + ".renamed")
	assert.NoError(t, err)
}

func TestFaultyFS_Rules(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	custom := errors.New("disk on fire")

	ffs.AddRule("entries-", Fault{FailAfterBytes: 3, Err: custom})
	ffs.AddRule("keys-", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("bloom-", Fault{FailAfterBytes: -1, FailOnClose: true})
	ffs.AddRule("CURRENT", Fault{FailAfterBytes: -1, FailOnRename: true})
	ffs.AddRule("kinds-", Fault{FailOnOpen: true})

	// 1. Per-file byte limit with a custom error.
	f, err := ffs.OpenFile(filepath.Join(tmp, "entries-000001.blob"), os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = f.Write([]byte("d"))
	assert.ErrorIs(t, err, custom)
	require.NoError(t, f.Close())

	// 2. Sync failure.
	f, err = ffs.OpenFile(filepath.Join(tmp, "keys-000001.idx"), os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	require.NoError(t, f.Close())

	// 3. Close failure still releases the file.
	f, err = ffs.OpenFile(filepath.Join(tmp, "bloom-000001.bf"), os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Close(), ErrInjected)

	// 4. Rename onto a matching target.
	src := filepath.Join(tmp, "CURRENT.tmp")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	err = ffs.Rename(src, filepath.Join(tmp, "CURRENT"))
	assert.ErrorIs(t, err, ErrInjected)

	// 5. Open failure.
	_, err = ffs.OpenFile(filepath.Join(tmp, "kinds-000001.rb"), os.O_CREATE|os.O_WRONLY, 0644)
	assert.ErrorIs(t, err, ErrInjected)

	// Unmatched files are unaffected.
	f, err = ffs.OpenFile(filepath.Join(tmp, "other"), os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte("plenty of bytes"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
}

func TestFaultyFS_SyncDirAfterRename(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("CURRENT", Fault{FailAfterBytes: -1, FailOnSyncDir: true})

	// Syncs not preceded by a matching rename pass through.
	require.NoError(t, ffs.SyncDir(tmp))

	src := filepath.Join(tmp, "CURRENT.tmp")
	dst := filepath.Join(tmp, "CURRENT")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	require.NoError(t, ffs.Rename(src, dst))

	assert.ErrorIs(t, ffs.SyncDir(tmp), ErrInjected)
	_, err := os.Stat(dst)
	assert.NoError(t, err)

	// The fault fires once per rename.
	assert.NoError(t, ffs.SyncDir(tmp))
}

func TestFaultyFS_Delegation(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})

	// MkdirAll
	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, ffs.MkdirAll(dir, 0755))

	fpath := filepath.Join(dir, "test.txt")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.NoError(t, ffs.SyncDir(dir))

	// ReadDir
	entries, err := ffs.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	// Remove
	assert.NoError(t, ffs.Remove(fpath))
}
