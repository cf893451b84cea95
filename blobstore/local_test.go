package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	kfs "github.com/hupe1980/kosha/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	data := []byte("hello world, this is a test blob for kosha")
	w, err := store.Create(ctx, "keys-000001.idx")
	require.NoError(t, err)
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	// Not visible before Close.
	_, err = os.Stat(filepath.Join(dir, "keys-000001.idx"))
	require.ErrorIs(t, err, os.ErrNotExist)
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, "keys-000001.idx")
	require.NoError(t, err)
	defer blob.Close()
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	r, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "this", string(content))

	mapped, err := Bytes(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, mapped)
	assert.NoError(t, Advise(blob, AccessRandom))
	assert.NoError(t, Advise(blob, AccessWillNeed))

	require.NoError(t, store.Put(ctx, "CURRENT", []byte("MANIFEST-000001.bin")))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CURRENT", "keys-000001.idx"}, names)

	names, err = store.List(ctx, "keys-")
	require.NoError(t, err)
	assert.Equal(t, []string{"keys-000001.idx"}, names)

	require.NoError(t, store.Delete(ctx, "CURRENT"))
	require.NoError(t, store.Delete(ctx, "CURRENT"))
	_, err = store.Open(ctx, "CURRENT")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_Abort(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	w, err := store.Create(ctx, "entries-000001.blob")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = w.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrAborted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStore_MissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "nope"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = store.Open(context.Background(), "CURRENT")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_InjectedFaults(t *testing.T) {
	dir := t.TempDir()
	ffs := kfs.NewFaultyFS(nil)
	store := NewLocalStore(dir, WithFileSystem(ffs))
	ctx := context.Background()

	ffs.AddRule("CURRENT", kfs.Fault{FailOnRename: true, FailAfterBytes: -1})
	err := store.Put(ctx, "CURRENT", []byte("MANIFEST-000001.bin"))
	require.ErrorIs(t, err, kfs.ErrInjected)

	ffs.AddRule("keys", kfs.Fault{FailAfterBytes: 4})
	w, err := store.Create(ctx, "keys-000001.idx")
	require.NoError(t, err)
	_, err = w.Write([]byte("0123456789"))
	require.ErrorIs(t, err, kfs.ErrInjected)
	require.NoError(t, w.Abort())

	// Nothing was committed and no temporary files remain.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
