package manifest

import (
	"context"
	"io/fs"
	"testing"

	"github.com/hupe1980/kosha/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewStore(blobstore.NewLocalStore(t.TempDir()))

	m := testManifest(1)
	m.CreatedAt = m.CreatedAt.Local()
	require.NoError(t, s.Save(ctx, m))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.ID)
	assert.Equal(t, m.Segments, loaded.Segments)
	assert.Equal(t, "zstd", loaded.Compression)

	seg, ok := loaded.Segment(SegmentEntries)
	require.True(t, ok)
	assert.Equal(t, "entries-000001.blob", seg.Path)
}

func TestStore_LoadMissing(t *testing.T) {
	ctx := context.Background()

	for name, bs := range map[string]blobstore.BlobStore{
		"memory":       blobstore.NewMemoryStore(),
		"local":        blobstore.NewLocalStore(t.TempDir()),
		"missing root": blobstore.NewLocalStore(t.TempDir() + "/nope"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewStore(bs).Load(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, err, fs.ErrNotExist)
		})
	}
}

func TestStore_CurrentID(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	s := NewStore(bs)

	_, err := s.CurrentID(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// CURRENT is read on its own, even when the manifest it names is gone.
	require.NoError(t, s.Commit(ctx, 7))
	id, err := s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	require.NoError(t, bs.Put(ctx, CurrentFileName, []byte("keys-000007.idx")))
	_, err = s.CurrentID(ctx)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestStore_LoadCorrupted(t *testing.T) {
	ctx := context.Background()

	t.Run("bad current", func(t *testing.T) {
		bs := blobstore.NewMemoryStore()
		require.NoError(t, bs.Put(ctx, CurrentFileName, []byte("garbage")))
		_, err := NewStore(bs).Load(ctx)
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("dangling current", func(t *testing.T) {
		bs := blobstore.NewMemoryStore()
		require.NoError(t, bs.Put(ctx, CurrentFileName, []byte(FileName(3))))
		_, err := NewStore(bs).Load(ctx)
		assert.ErrorIs(t, err, ErrCorrupted)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("flipped byte", func(t *testing.T) {
		bs := blobstore.NewMemoryStore()
		s := NewStore(bs)
		require.NoError(t, s.Save(ctx, testManifest(1)))
		require.True(t, bs.Corrupt(FileName(1), 20))
		_, err := s.Load(ctx)
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("generation mismatch", func(t *testing.T) {
		bs := blobstore.NewMemoryStore()
		s := NewStore(bs)
		require.NoError(t, s.WriteManifest(ctx, testManifest(2)))
		data, err := blobstore.ReadFile(ctx, bs, FileName(2))
		require.NoError(t, err)
		require.NoError(t, bs.Put(ctx, FileName(5), data))
		require.NoError(t, s.Commit(ctx, 5))
		_, err = s.Load(ctx)
		assert.ErrorIs(t, err, ErrCorrupted)
	})
}

func TestStore_Generations(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	s := NewStore(bs)

	id, err := s.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	require.NoError(t, s.Save(ctx, testManifest(1)))
	require.NoError(t, s.WriteManifest(ctx, testManifest(2)))
	// Orphaned segment of an aborted build still reserves its generation.
	require.NoError(t, bs.Put(ctx, SegmentName(SegmentKeys, 4), []byte("x")))

	id, err = s.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)

	ids, err := s.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, ids)

	// Writing a manifest does not commit it.
	cur, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cur.ID)

	m2, err := s.LoadVersion(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m2.ID)

	require.NoError(t, s.Commit(ctx, 2))
	require.NoError(t, s.DeleteVersion(ctx, 1))

	ids, err = s.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ids)

	cur, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur.ID)
}

func TestGeneration(t *testing.T) {
	cases := map[string]struct {
		id uint64
		ok bool
	}{
		"MANIFEST-000012.bin":   {12, true},
		"keys-000003.idx":       {3, true},
		"entries-000003.blob":   {3, true},
		"bloom-1000000.bf":      {1000000, true},
		"kinds-000002.rb":       {2, true},
		"keys-000003.blob":      {0, false},
		"keys-000003.idx.tmp":   {0, false},
		"CURRENT":               {0, false},
		"MANIFEST-abc.bin":      {0, false},
		"other-000001.idx":      {0, false},
		"entries-000003.blob.x": {0, false},
	}
	for name, want := range cases {
		id, ok := Generation(name)
		assert.Equal(t, want.ok, ok, name)
		if want.ok {
			assert.Equal(t, want.id, id, name)
		}
	}

	assert.Equal(t, "kinds-000009.rb", SegmentName(SegmentKinds, 9))
	assert.Equal(t, "MANIFEST-000009.bin", FileName(9))
}

func TestValidate(t *testing.T) {
	require.NoError(t, testManifest(1).Validate())

	dup := testManifest(1)
	dup.Segments[1].Kind = SegmentKeys
	assert.ErrorIs(t, dup.Validate(), ErrCorrupted)

	unknown := testManifest(1)
	unknown.Segments[0].Kind = 42
	assert.ErrorIs(t, unknown.Validate(), ErrCorrupted)

	empty := testManifest(1)
	empty.Segments[2].Path = ""
	assert.ErrorIs(t, empty.Validate(), ErrCorrupted)
}
