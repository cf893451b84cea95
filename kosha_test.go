package kosha

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/hupe1980/kosha/blobstore"
	"github.com/hupe1980/kosha/codec"
	"github.com/hupe1980/kosha/entry"
	"github.com/hupe1980/kosha/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gam(t testing.TB) entry.DhatuEntry {
	t.Helper()
	d, err := entry.NewDhatuEntry(entry.Dhatu{Aupadeshika: "ga\\mx", Gana: entry.Bhvadi}, "gam")
	require.NoError(t, err)
	return d
}

func tinanta(t testing.TB) entry.Tinanta {
	return entry.Tinanta{
		Dhatu:   gam(t),
		Prayoga: entry.Kartari,
		Lakara:  entry.Lat,
		Purusha: entry.Prathama,
		Vacana:  entry.Eka,
	}
}

func subanta(t testing.TB) entry.Subanta {
	return entry.Subanta{
		Pratipadika: entry.Krdanta{Dhatu: gam(t), Krt: entry.Satf},
		Linga:       entry.Pum,
		Vibhakti:    entry.VibhaktiSaptami,
		Vacana:      entry.Eka,
	}
}

// nthEntry returns a distinct valid entry for every n below 11*3*3.
func nthEntry(t testing.TB, n int) entry.Entry {
	return entry.Tinanta{
		Dhatu:   gam(t),
		Prayoga: entry.Kartari,
		Lakara:  entry.Lakara(n%11 + 1),
		Purusha: entry.Purusha(n/11%3 + 1),
		Vacana:  entry.Vacana(n/33%3 + 1),
	}
}

type pair struct {
	key string
	e   entry.Entry
}

func build(t *testing.T, dir string, pairs []pair, opts ...Option) {
	t.Helper()
	b, err := NewBuilder(dir, opts...)
	require.NoError(t, err)
	for _, p := range pairs {
		require.NoError(t, b.Insert(p.key, p.e))
	}
	require.NoError(t, b.Finish(context.Background()))
}

func openT(t *testing.T, dir string, opts ...Option) *Kosha {
	t.Helper()
	k, err := Open(context.Background(), dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })
	return k
}

var compressions = []Compression{CompressionNone, CompressionLZ4, CompressionZSTD}

func TestScenario(t *testing.T) {
	ctx := context.Background()

	for _, c := range compressions {
		t.Run(c.String(), func(t *testing.T) {
			dir := t.TempDir()
			a, b := tinanta(t), subanta(t)
			build(t, dir, []pair{{"gacCati", a}, {"gacCati", b}}, WithCompression(c))

			k := openT(t, dir)

			assert.True(t, k.Contains("gacCati"))
			assert.False(t, k.Contains("Bavati"))

			got, err := k.GetAll(ctx, "gacCati")
			require.NoError(t, err)
			assert.Equal(t, []entry.Entry{a, b}, got)

			got, err = k.GetAll(ctx, "Bavati")
			require.NoError(t, err)
			assert.Empty(t, got)

			for i := 0; i <= len("gacCati"); i++ {
				assert.True(t, k.ContainsPrefix("gacCati"[:i]), "gacCati"[:i])
			}
			assert.False(t, k.ContainsPrefix("gacCati2"))

			assert.Equal(t, 1, k.Len())
			assert.Equal(t, uint64(2), k.EntryCount())
		})
	}
}

func TestGetAll_OrderAndMultiplicity(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewPCG(7, 7))

	// Reference multimap in insertion order.
	want := map[string][]entry.Entry{}
	var pairs []pair
	for i := range 2000 {
		key := fmt.Sprintf("k%03d", r.IntN(300))
		e := nthEntry(t, i%99)
		want[key] = append(want[key], e)
		pairs = append(pairs, pair{key, e})
	}

	for _, c := range compressions {
		t.Run(c.String(), func(t *testing.T) {
			dir := t.TempDir()
			build(t, dir, pairs, WithCompression(c), WithBlockSize(512), WithRestartInterval(4))
			k := openT(t, dir, WithBlockCacheSize(4<<10))

			assert.Equal(t, len(want), k.Len())
			assert.Equal(t, uint64(len(pairs)), k.EntryCount())

			for key, entries := range want {
				got, err := k.GetAll(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, entries, got, key)
			}
		})
	}
}

func TestContainsPrefix_Monotonicity(t *testing.T) {
	dir := t.TempDir()
	keys := []string{"gacCati", "gacCanti", "gam", "Bavati", "Bavanti", "rAmaH", "गच्छति"}
	var pairs []pair
	for _, k := range keys {
		pairs = append(pairs, pair{k, tinanta(t)})
	}
	build(t, dir, pairs)
	k := openT(t, dir)

	for _, key := range keys {
		for i := 0; i <= len(key); i++ {
			assert.True(t, k.ContainsPrefix(key[:i]), key[:i])
		}
		// No key contains NUL, so nothing can continue this prefix.
		assert.False(t, k.ContainsPrefix(key+"\x00"))
	}
	assert.False(t, k.ContainsPrefix("x"))
	assert.False(t, k.ContainsPrefix("gacCatiH"))
	assert.False(t, k.Contains("gac"))
}

func TestEmptyStore(t *testing.T) {
	dir := t.TempDir()
	build(t, dir, nil)
	k := openT(t, dir)

	assert.Zero(t, k.Len())
	assert.False(t, k.ContainsPrefix(""))
	assert.False(t, k.Contains("a"))

	got, err := k.GetAll(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	for range k.Keys("") {
		t.Fatal("empty store yielded a key")
	}
}

func TestOpen_Missing(t *testing.T) {
	ctx := context.Background()

	for name, dir := range map[string]string{
		"empty dir":   t.TempDir(),
		"missing dir": filepath.Join(t.TempDir(), "nope"),
	} {
		t.Run(name, func(t *testing.T) {
			k, err := Open(ctx, dir)
			assert.Nil(t, k)
			assert.ErrorIs(t, err, ErrOpenFailure)
			assert.ErrorIs(t, err, fs.ErrNotExist)

			var oe *OpenError
			require.ErrorAs(t, err, &oe)
			assert.Equal(t, dir, oe.Location)
		})
	}
}

func TestOpen_Incomplete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	build(t, dir, []pair{{"gacCati", tinanta(t)}})

	// Every segment is intact, but nothing is committed.
	require.NoError(t, os.Remove(filepath.Join(dir, "CURRENT")))

	_, err := Open(ctx, dir)
	assert.ErrorIs(t, err, ErrOpenFailure)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpen_Corrupted(t *testing.T) {
	ctx := context.Background()

	flip := func(t *testing.T, path string, off int) {
		t.Helper()
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		data[off] ^= 0xff
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	cases := map[string]func(t *testing.T, dir string){
		"keys checksum": func(t *testing.T, dir string) {
			flip(t, filepath.Join(dir, "keys-000001.idx"), 0)
		},
		"bloom checksum": func(t *testing.T, dir string) {
			flip(t, filepath.Join(dir, "bloom-000001.bf"), 20)
		},
		"blob checksum": func(t *testing.T, dir string) {
			flip(t, filepath.Join(dir, "entries-000001.blob"), 3)
		},
		"manifest": func(t *testing.T, dir string) {
			flip(t, filepath.Join(dir, "MANIFEST-000001.bin"), 20)
		},
		"missing segment": func(t *testing.T, dir string) {
			require.NoError(t, os.Remove(filepath.Join(dir, "kinds-000001.rb")))
		},
		"truncated segment": func(t *testing.T, dir string) {
			require.NoError(t, os.Truncate(filepath.Join(dir, "entries-000001.blob"), 10))
		},
		"dangling current": func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "CURRENT"), []byte("MANIFEST-000009.bin"), 0o644))
		},
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			build(t, dir, []pair{{"gacCati", tinanta(t)}, {"gam", subanta(t)}})
			corrupt(t, dir)

			_, err := Open(ctx, dir)
			assert.ErrorIs(t, err, ErrOpenFailure)
			assert.NotErrorIs(t, err, fs.ErrNotExist)
		})
	}
}

func TestOpen_CodecMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	build(t, dir, []pair{{"gacCati", tinanta(t)}}, WithCodec(codec.JSON{}))

	_, err := Open(ctx, dir, WithCodec(codec.Binary{}))
	assert.ErrorIs(t, err, ErrOpenFailure)
	assert.Contains(t, err.Error(), "codec mismatch")

	// Without an explicit codec the stored one is used.
	k := openT(t, dir)
	got, err := k.GetAll(ctx, "gacCati")
	require.NoError(t, err)
	assert.Equal(t, []entry.Entry{tinanta(t)}, got)
	assert.Equal(t, "json", k.Stats().Codec)
}

// lossyCodec drops the last byte of every subanta record.
type lossyCodec struct{ codec.Binary }

func (lossyCodec) Name() string { return "lossy" }

func (c lossyCodec) Append(dst []byte, e entry.Entry) ([]byte, error) {
	out, err := c.Binary.Append(dst, e)
	if err == nil && e.Kind() == entry.KindSubanta {
		out = out[:len(out)-1]
	}
	return out, err
}

func TestGetAll_CorruptRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("undecodable record", func(t *testing.T) {
		dir := t.TempDir()
		build(t, dir, []pair{{"gacCati", tinanta(t)}, {"gacCati", subanta(t)}, {"gam", tinanta(t)}}, WithCodec(lossyCodec{}))

		_, err := Open(ctx, dir)
		assert.ErrorIs(t, err, ErrOpenFailure, "lossy is not a built-in codec")

		k := openT(t, dir, WithCodec(lossyCodec{}))
		_, err = k.GetAll(ctx, "gacCati")
		assert.ErrorIs(t, err, codec.ErrCorruptRecord)

		// Other keys stay readable.
		got, err := k.GetAll(ctx, "gam")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("damaged block", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		b, err := NewBuilderWithStore(store, WithCompression(CompressionZSTD), WithBlockSize(64))
		require.NoError(t, err)
		for i := range 200 {
			require.NoError(t, b.Insert(fmt.Sprintf("k%03d", i), nthEntry(t, i%99)))
		}
		require.NoError(t, b.Finish(ctx))

		// The first block starts at offset 0 behind an 8 byte header.
		require.True(t, store.Corrupt("entries-000001.blob", 10))

		k, err := OpenStore(ctx, store)
		require.NoError(t, err)
		defer k.Close()

		_, err = k.GetAll(ctx, "k000")
		assert.ErrorIs(t, err, codec.ErrCorruptRecord)

		got, err := k.GetAll(ctx, "k199")
		require.NoError(t, err)
		assert.Equal(t, []entry.Entry{nthEntry(t, 199%99)}, got)
	})
}

func TestContainsKind(t *testing.T) {
	dir := t.TempDir()
	build(t, dir, []pair{
		{"gacCati", tinanta(t)},
		{"gacCati", subanta(t)},
		{"gacCatA", subanta(t)},
		{"gacCAmi", tinanta(t)},
	})
	k := openT(t, dir)

	assert.True(t, k.ContainsKind("gacCati", entry.KindTinanta))
	assert.True(t, k.ContainsKind("gacCati", entry.KindSubanta))
	assert.False(t, k.ContainsKind("gacCatA", entry.KindTinanta))
	assert.True(t, k.ContainsKind("gacCatA", entry.KindSubanta))
	assert.True(t, k.ContainsKind("gacCAmi", entry.KindTinanta))
	assert.False(t, k.ContainsKind("Bavati", entry.KindTinanta))

	s := k.Stats()
	assert.Equal(t, uint64(2), s.KindCounts[entry.KindTinanta])
	assert.Equal(t, uint64(2), s.KindCounts[entry.KindSubanta])
}

func TestKeys(t *testing.T) {
	dir := t.TempDir()
	var pairs []pair
	for _, key := range []string{"gam", "gacCati", "Bavati", "gacCanti", "gam"} {
		pairs = append(pairs, pair{key, tinanta(t)})
	}
	build(t, dir, pairs)
	k := openT(t, dir)

	assert.Equal(t, []string{"Bavati", "gacCanti", "gacCati", "gam"}, slices.Collect(k.Keys("")))
	assert.Equal(t, []string{"gacCanti", "gacCati"}, slices.Collect(k.Keys("gacC")))
	assert.Empty(t, slices.Collect(k.Keys("z")))

	var first []string
	for key := range k.Keys("") {
		first = append(first, key)
		break
	}
	assert.Equal(t, []string{"Bavati"}, first)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	build(t, dir, []pair{{"gacCati", tinanta(t)}, {"gam", subanta(t)}}, WithCompression(CompressionLZ4), WithBlockSize(1024))
	k := openT(t, dir)

	s := k.Stats()
	assert.Equal(t, uint64(1), s.Generation)
	assert.Equal(t, "binary", s.Codec)
	assert.Equal(t, uint32(1), s.CodecVersion)
	assert.Equal(t, CompressionLZ4, s.Compression)
	assert.Equal(t, 1024, s.BlockSize)
	assert.Equal(t, 2, s.Keys)
	assert.Equal(t, uint64(2), s.Entries)
	assert.Len(t, s.Segments, 4)
	assert.False(t, s.CreatedAt.IsZero())

	var total int64
	for _, seg := range s.Segments {
		info, err := os.Stat(filepath.Join(dir, seg.Path))
		require.NoError(t, err)
		assert.Equal(t, info.Size(), seg.Size)
		total += seg.Size
	}
	assert.Equal(t, total, s.TotalBytes)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	build(t, dir, []pair{{"gacCati", tinanta(t)}})

	k, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, k.Close())
	require.NoError(t, k.Close())

	assert.False(t, k.Contains("gacCati"))
	assert.False(t, k.ContainsPrefix(""))
	assert.False(t, k.ContainsKind("gacCati", entry.KindTinanta))
	_, err = k.GetAll(ctx, "gacCati")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, slices.Collect(k.Keys("")))
}

func TestConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var pairs []pair
	for i := range 500 {
		pairs = append(pairs, pair{fmt.Sprintf("k%03d", i), nthEntry(t, i%99)})
	}
	build(t, dir, pairs, WithCompression(CompressionZSTD), WithBlockSize(256))

	metrics := &BasicMetricsCollector{}
	k := openT(t, dir, WithMetricsCollector(metrics), WithBlockCacheSize(64<<10))

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				n := (g*31 + i*7) % 500
				key := fmt.Sprintf("k%03d", n)
				assert.True(t, k.Contains(key))
				got, err := k.GetAll(ctx, key)
				if assert.NoError(t, err) {
					assert.Equal(t, []entry.Entry{nthEntry(t, n%99)}, got)
				}
				assert.False(t, k.Contains(key+"x"))
			}
		}()
	}
	wg.Wait()

	stats := metrics.GetStats()
	assert.Equal(t, int64(16*200*3), stats.LookupCount)
	assert.Equal(t, int64(16*200*2), stats.LookupHits)
	assert.Positive(t, stats.CacheHits)
	assert.Positive(t, stats.CacheMisses)
	assert.Equal(t, int64(1), stats.OpenCount)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()

	b, err := NewBuilderWithStore(mem, WithCompression(CompressionZSTD))
	require.NoError(t, err)
	require.NoError(t, b.Insert("gacCati", tinanta(t)))
	require.NoError(t, b.Insert("gacCati", subanta(t)))
	require.NoError(t, b.Finish(ctx))

	stores := map[string]blobstore.BlobStore{
		"memory":  mem,
		"caching": blobstore.NewCachingStore(mem, cache.NewLRUBlockCache(1<<20, nil), 4096),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			k, err := OpenStore(ctx, store)
			require.NoError(t, err)
			defer k.Close()

			got, err := k.GetAll(ctx, "gacCati")
			require.NoError(t, err)
			assert.Equal(t, []entry.Entry{tinanta(t), subanta(t)}, got)
		})
	}

	_, err = OpenStore(ctx, blobstore.NewMemoryStore())
	assert.ErrorIs(t, err, ErrOpenFailure)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRebuildGenerations(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	build(t, dir, []pair{{"gacCati", tinanta(t)}})
	old := openT(t, dir)

	build(t, dir, []pair{{"Bavati", subanta(t)}})
	k := openT(t, dir)

	assert.Equal(t, uint64(2), k.Stats().Generation)
	assert.True(t, k.Contains("Bavati"))
	assert.False(t, k.Contains("gacCati"))

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, n := range names {
		assert.False(t, strings.Contains(n.Name(), "000001"), n.Name())
	}

	// The first generation stays readable through its open handle.
	got, err := old.GetAll(ctx, "gacCati")
	require.NoError(t, err)
	assert.Equal(t, []entry.Entry{tinanta(t)}, got)
}

func TestOpen_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}

	_, err := Open(ctx, t.TempDir(), WithMetricsCollector(metrics))
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.OpenCount)
	assert.Equal(t, int64(1), stats.OpenErrors)
	assert.True(t, errors.Is(err, ErrOpenFailure))
}
