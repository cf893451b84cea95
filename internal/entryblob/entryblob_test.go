package entryblob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/hupe1980/kosha/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bytesSource struct {
	data  []byte
	reads int
}

func (s *bytesSource) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	s.reads++
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *bytesSource) Size() int64 { return int64(len(s.data)) }

type mappedSource struct{ bytesSource }

func (s *mappedSource) Bytes() ([]byte, error) { return s.data, nil }

type span struct{ off, length uint64 }

func writeBlob(t *testing.T, c Compression, blockSize int, records [][]byte) ([]byte, []span) {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, c, blockSize)
	require.NoError(t, err)

	spans := make([]span, 0, len(records))
	for _, rec := range records {
		off := w.Offset()
		require.NoError(t, w.AppendFrame(rec))
		spans = append(spans, span{off, w.Offset() - off})
	}
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(buf.Len()), w.Size())
	return buf.Bytes(), spans
}

func sampleRecords(n int) [][]byte {
	r := rand.New(rand.NewPCG(7, 7))
	records := make([][]byte, n)
	for i := range records {
		// Repetitive payloads so that compression actually kicks in.
		rec := fmt.Appendf(nil, "record-%d:", i)
		for range r.IntN(40) {
			rec = append(rec, "gacCati "...)
		}
		records[i] = rec
	}
	return records
}

func TestRoundTrip(t *testing.T) {
	records := sampleRecords(500)
	ctx := context.Background()

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			// A small block size forces frames across block boundaries.
			data, spans := writeBlob(t, c, 256, records)

			r, err := Open(ctx, &bytesSource{data: data}, ReaderOptions{})
			require.NoError(t, err)
			assert.Equal(t, c, r.Compression())
			assert.Equal(t, 256, r.BlockSize())

			for i, sp := range spans {
				got, err := r.ReadRange(ctx, sp.off, sp.length)
				require.NoError(t, err)
				frames, err := SplitFrames(got, 1)
				require.NoError(t, err)
				assert.Equal(t, records[i], frames[0])
			}

			// Several consecutive frames in one read.
			got, err := r.ReadRange(ctx, spans[10].off, spans[14].off+spans[14].length-spans[10].off)
			require.NoError(t, err)
			frames, err := SplitFrames(got, 5)
			require.NoError(t, err)
			assert.Equal(t, records[10:15], frames)

			if c != CompressionNone {
				assert.Less(t, len(data), int(r.LogicalSize()))
				assert.Positive(t, r.NumBlocks())
			}
		})
	}
}

func TestEmptyBlob(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZSTD} {
		data, _ := writeBlob(t, c, 0, nil)
		r, err := Open(context.Background(), &bytesSource{data: data}, ReaderOptions{})
		require.NoError(t, err)
		assert.Zero(t, r.LogicalSize())
		assert.Zero(t, r.NumBlocks())

		got, err := r.ReadRange(context.Background(), 0, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestZeroCopyMapped(t *testing.T) {
	data, spans := writeBlob(t, CompressionNone, 0, [][]byte{[]byte("a"), []byte("bc")})
	src := &mappedSource{bytesSource{data: data}}

	r, err := Open(context.Background(), src, ReaderOptions{})
	require.NoError(t, err)
	reads := src.reads

	got, err := r.ReadRange(context.Background(), spans[1].off, spans[1].length)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 'b', 'c'}, got)
	assert.Equal(t, reads, src.reads)
	assert.Same(t, &data[spans[1].off], &got[0])
}

func TestBlockCache(t *testing.T) {
	records := sampleRecords(100)
	data, spans := writeBlob(t, CompressionLZ4, 512, records)
	src := &bytesSource{data: data}
	c := cache.NewLRUBlockCache(1<<20, nil)

	var hits, misses int
	r, err := Open(context.Background(), src, ReaderOptions{
		Cache:       c,
		Path:        "entries-000001.blob",
		Generation:  1,
		OnCacheHit:  func() { hits++ },
		OnCacheMiss: func() { misses++ },
	})
	require.NoError(t, err)

	for range 2 {
		got, err := r.ReadRange(context.Background(), spans[3].off, spans[3].length)
		require.NoError(t, err)
		frames, err := SplitFrames(got, 1)
		require.NoError(t, err)
		assert.Equal(t, records[3], frames[0])
	}
	assert.Positive(t, misses)
	assert.Equal(t, misses, hits)
	assert.Positive(t, c.Len())
}

func TestOpen_Corrupted(t *testing.T) {
	data, spans := writeBlob(t, CompressionZSTD, 256, sampleRecords(50))
	ctx := context.Background()

	_, err := Open(ctx, &bytesSource{data: data[:10]}, ReaderOptions{})
	assert.ErrorIs(t, err, ErrCorrupted)

	bad := bytes.Clone(data)
	bad[len(bad)-1] ^= 0xff // magic
	_, err = Open(ctx, &bytesSource{data: bad}, ReaderOptions{})
	assert.ErrorIs(t, err, ErrCorrupted)

	bad = bytes.Clone(data)
	bad[len(bad)-trailerSize] ^= 0xff // logical size, covered by the checksum
	_, err = Open(ctx, &bytesSource{data: bad}, ReaderOptions{})
	assert.ErrorIs(t, err, ErrCorrupted)

	// A flipped byte inside a block is caught by the block checksum on read.
	bad = bytes.Clone(data)
	bad[blockHeaderSize+1] ^= 0xff
	r, err := Open(ctx, &bytesSource{data: bad}, ReaderOptions{})
	require.NoError(t, err)
	_, err = r.ReadRange(ctx, spans[0].off, spans[0].length)
	assert.ErrorIs(t, err, ErrCorrupted)

	r, err = Open(ctx, &bytesSource{data: data}, ReaderOptions{})
	require.NoError(t, err)
	_, err = r.ReadRange(ctx, r.LogicalSize(), 1)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestSplitFrames(t *testing.T) {
	frames, err := SplitFrames([]byte{1, 'a', 0, 2, 'b', 'c'}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), {}, []byte("bc")}, frames)

	_, err = SplitFrames([]byte{1, 'a'}, 2)
	assert.ErrorIs(t, err, ErrCorrupted)

	_, err = SplitFrames([]byte{5, 'a'}, 1)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFrameSize(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, CompressionNone, 0)
	require.NoError(t, err)

	var want uint64
	for _, n := range []int{0, 1, 127, 128, 300, 20000} {
		require.NoError(t, w.AppendFrame(make([]byte, n)))
		want += FrameSize(n)
		assert.Equal(t, want, w.Offset())
	}
}

func TestIncompressibleBlockStoredRaw(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	noise := make([]byte, 1000)
	for i := range noise {
		noise[i] = byte(r.Uint32())
	}

	stored, err := compressBlock(nil, noise, CompressionLZ4)
	require.NoError(t, err)
	assert.Equal(t, len(noise)+blockHeaderSize, len(stored))

	out, err := decompressBlock(stored, CompressionLZ4, len(noise))
	require.NoError(t, err)
	assert.Equal(t, noise, out)

	_, err = decompressBlock(stored, CompressionLZ4, 10)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("snappy")
	assert.Error(t, err)
	assert.False(t, Compression(9).Valid())
}
