package entryblob

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/kosha/internal/cache"
	"github.com/hupe1980/kosha/internal/hash"
)

// Source is the storage a Reader reads from.
type Source interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	Size() int64
}

// mappable is implemented by sources backed by a memory mapping.
type mappable interface {
	Bytes() ([]byte, error)
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// Cache holds decompressed blocks. Optional.
	Cache cache.BlockCache
	// Path and Generation identify the blob in the cache.
	Path       string
	Generation uint64
	// OnCacheHit and OnCacheMiss are called per block lookup. Optional.
	OnCacheHit  func()
	OnCacheMiss func()
}

// Reader reads frames from a blob. It is safe for concurrent use.
type Reader struct {
	src  Source
	opts ReaderOptions

	compression Compression
	blockSize   int
	logical     uint64
	blocks      []blockInfo
	mapped      []byte // logical stream, CompressionNone over a mapping only
}

// Open validates the trailer and block table of src.
func Open(ctx context.Context, src Source, opts ReaderOptions) (*Reader, error) {
	size := src.Size()
	if size < trailerSize {
		return nil, fmt.Errorf("%w: %d bytes is too small", ErrCorrupted, size)
	}

	var tr [trailerSize]byte
	if err := readFull(ctx, src, tr[:], size-trailerSize); err != nil {
		return nil, err
	}
	if order.Uint32(tr[32:]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupted)
	}

	logical := order.Uint64(tr[0:])
	tableOff := order.Uint64(tr[8:])
	nblocks := uint64(order.Uint32(tr[16:]))
	blockSize := int(order.Uint32(tr[20:]))
	c := Compression(tr[24])
	version := tr[25]

	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupted, version)
	}
	if !c.Valid() || blockSize <= 0 {
		return nil, fmt.Errorf("%w: bad trailer", ErrCorrupted)
	}
	if tableOff+nblocks*tableEntry+trailerSize != uint64(size) {
		return nil, fmt.Errorf("%w: table does not fit blob", ErrCorrupted)
	}

	tail := make([]byte, int(nblocks)*tableEntry+trailerSize)
	if err := readFull(ctx, src, tail, int64(tableOff)); err != nil {
		return nil, err
	}
	if hash.CRC32C(tail[:len(tail)-8]) != order.Uint32(tail[len(tail)-8:]) {
		return nil, fmt.Errorf("%w: trailer checksum mismatch", ErrCorrupted)
	}

	r := &Reader{
		src:         src,
		opts:        opts,
		compression: c,
		blockSize:   blockSize,
		logical:     logical,
	}

	if c == CompressionNone {
		if nblocks != 0 || tableOff != logical {
			return nil, fmt.Errorf("%w: bad uncompressed layout", ErrCorrupted)
		}
		if m, ok := src.(mappable); ok {
			if data, err := m.Bytes(); err == nil && uint64(len(data)) >= logical {
				r.mapped = data[:logical]
			}
		}
		return r, nil
	}

	if nblocks != (logical+uint64(blockSize)-1)/uint64(blockSize) {
		return nil, fmt.Errorf("%w: %d blocks for %d bytes", ErrCorrupted, nblocks, logical)
	}
	r.blocks = make([]blockInfo, nblocks)
	var next uint64
	for i := range r.blocks {
		e := tail[i*tableEntry:]
		b := blockInfo{offset: order.Uint64(e[0:]), stored: order.Uint32(e[8:]), crc: order.Uint32(e[12:])}
		if b.offset != next || b.stored < blockHeaderSize {
			return nil, fmt.Errorf("%w: block %d misplaced", ErrCorrupted, i)
		}
		next += uint64(b.stored)
		r.blocks[i] = b
	}
	if next != tableOff {
		return nil, fmt.Errorf("%w: blocks do not end at table", ErrCorrupted)
	}
	return r, nil
}

// Compression returns the block compression of the blob.
func (r *Reader) Compression() Compression { return r.compression }

// BlockSize returns the logical block size.
func (r *Reader) BlockSize() int { return r.blockSize }

// LogicalSize returns the length of the logical frame stream.
func (r *Reader) LogicalSize() uint64 { return r.logical }

// NumBlocks returns the number of compressed blocks (0 when uncompressed).
func (r *Reader) NumBlocks() int { return len(r.blocks) }

// ReadRange returns length bytes of the logical stream at off.
// The result may alias a mapping or a cached block and must not be modified.
func (r *Reader) ReadRange(ctx context.Context, off, length uint64) ([]byte, error) {
	if off > r.logical || length > r.logical-off {
		return nil, fmt.Errorf("%w: range [%d,+%d) beyond %d", ErrCorrupted, off, length, r.logical)
	}
	if length == 0 {
		return nil, nil
	}

	if r.compression == CompressionNone {
		if r.mapped != nil {
			return r.mapped[off : off+length], nil
		}
		buf := make([]byte, length)
		if err := readFull(ctx, r.src, buf, int64(off)); err != nil {
			return nil, err
		}
		return buf, nil
	}

	bs := uint64(r.blockSize)
	first, last := off/bs, (off+length-1)/bs
	if first == last {
		blk, err := r.block(ctx, int(first))
		if err != nil {
			return nil, err
		}
		start := off - first*bs
		return blk[start : start+length], nil
	}

	out := make([]byte, 0, length)
	for i := first; i <= last; i++ {
		blk, err := r.block(ctx, int(i))
		if err != nil {
			return nil, err
		}
		lo := max(off, i*bs) - i*bs
		hi := min(off+length, (i+1)*bs) - i*bs
		out = append(out, blk[lo:hi]...)
	}
	return out, nil
}

func (r *Reader) block(ctx context.Context, i int) ([]byte, error) {
	key := cache.CacheKey{
		Kind:       cache.CacheKindEntryBlock,
		Generation: r.opts.Generation,
		Path:       r.opts.Path,
		Offset:     uint64(i),
	}
	if r.opts.Cache != nil {
		if data, ok := r.opts.Cache.Get(ctx, key); ok {
			if r.opts.OnCacheHit != nil {
				r.opts.OnCacheHit()
			}
			return data, nil
		}
		if r.opts.OnCacheMiss != nil {
			r.opts.OnCacheMiss()
		}
	}

	b := r.blocks[i]
	stored := make([]byte, b.stored)
	if err := readFull(ctx, r.src, stored, int64(b.offset)); err != nil {
		return nil, err
	}
	if hash.CRC32C(stored) != b.crc {
		return nil, fmt.Errorf("%w: block %d checksum mismatch", ErrCorrupted, i)
	}
	data, err := decompressBlock(stored, r.compression, r.blockSize)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", i, err)
	}

	want := uint64(r.blockSize)
	if i == len(r.blocks)-1 {
		want = r.logical - uint64(i)*uint64(r.blockSize)
	}
	if uint64(len(data)) != want {
		return nil, fmt.Errorf("%w: block %d holds %d bytes, want %d", ErrCorrupted, i, len(data), want)
	}

	if r.opts.Cache != nil {
		r.opts.Cache.Set(ctx, key, data)
	}
	return data, nil
}

func readFull(ctx context.Context, src Source, p []byte, off int64) error {
	n, err := src.ReadAt(ctx, p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("entryblob: read %d bytes at %d: %w", len(p), off, err)
}

// SplitFrames splits data into exactly count frames and returns their records.
func SplitFrames(data []byte, count uint32) ([][]byte, error) {
	records := make([][]byte, 0, min(int(count), len(data)))
	for len(data) > 0 {
		n, w := binary.Uvarint(data)
		if w <= 0 || n > uint64(len(data)-w) {
			return nil, fmt.Errorf("%w: truncated frame %d", ErrCorrupted, len(records))
		}
		data = data[w:]
		records = append(records, data[:n:n])
		data = data[n:]
	}
	if uint32(len(records)) != count {
		return nil, fmt.Errorf("%w: %d frames, want %d", ErrCorrupted, len(records), count)
	}
	return records, nil
}
