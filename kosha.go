package kosha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/hupe1980/kosha/blobstore"
	"github.com/hupe1980/kosha/codec"
	"github.com/hupe1980/kosha/entry"
	"github.com/hupe1980/kosha/internal/bloom"
	"github.com/hupe1980/kosha/internal/cache"
	"github.com/hupe1980/kosha/internal/entryblob"
	"github.com/hupe1980/kosha/internal/hash"
	"github.com/hupe1980/kosha/internal/keyindex"
	"github.com/hupe1980/kosha/internal/kindindex"
	"github.com/hupe1980/kosha/internal/manifest"
)

// Kosha is a read-only handle to a committed store.
//
// It is safe for concurrent use by any number of goroutines. Lookups never
// block each other; only Close waits for running lookups to return.
type Kosha struct {
	location string
	opts     options
	manifest *manifest.Manifest
	codec    codec.Codec

	keys  *keyindex.Index
	bloom *bloom.Filter
	kinds *kindindex.Index
	blob  *entryblob.Reader
	cache cache.BlockCache // nil if disabled or not needed

	blobs []blobstore.Blob

	mu     sync.RWMutex
	closed bool
}

// Open opens the store committed in the directory location.
//
// Every failure matches ErrOpenFailure. A location without a committed store
// additionally matches fs.ErrNotExist, so callers can tell "not found" from
// "found but invalid".
func Open(ctx context.Context, location string, opts ...Option) (*Kosha, error) {
	return open(ctx, location, blobstore.NewLocalStore(location), opts)
}

// OpenStore opens the store committed in store.
func OpenStore(ctx context.Context, store blobstore.BlobStore, opts ...Option) (*Kosha, error) {
	return open(ctx, "store", store, opts)
}

func open(ctx context.Context, location string, store blobstore.BlobStore, optFns []Option) (*Kosha, error) {
	o := applyOptions(optFns)
	start := time.Now()

	k := &Kosha{location: location, opts: o}
	err := k.load(ctx, store)
	if err != nil {
		_ = k.release()
		err = openError(location, err)
	}

	o.metricsCollector.RecordOpen(time.Since(start), err)
	if err != nil {
		o.logger.LogOpen(ctx, location, 0, err)
		return nil, err
	}
	o.logger.LogOpen(ctx, location, k.keys.Len(), nil)
	return k, nil
}

func (k *Kosha) load(ctx context.Context, store blobstore.BlobStore) error {
	m, err := manifest.NewStore(store).Load(ctx)
	if err != nil {
		return err
	}
	k.manifest = m

	if k.codec, err = k.resolveCodec(m); err != nil {
		return err
	}

	compression, err := entryblob.ParseCompression(m.Compression)
	if err != nil {
		return fmt.Errorf("%w: %v", manifest.ErrCorrupted, err)
	}

	keysData, err := k.loadSegment(ctx, store, manifest.SegmentKeys)
	if err != nil {
		return err
	}
	if k.keys, err = keyindex.Open(keysData); err != nil {
		return err
	}
	if uint64(k.keys.Len()) != m.NumKeys {
		return fmt.Errorf("%w: index holds %d keys, manifest %d", manifest.ErrCorrupted, k.keys.Len(), m.NumKeys)
	}

	bloomData, err := k.loadSegment(ctx, store, manifest.SegmentBloom)
	if err != nil {
		return err
	}
	if k.bloom, err = bloom.Decode(bloomData); err != nil {
		return err
	}

	kindsData, err := k.loadSegment(ctx, store, manifest.SegmentKinds)
	if err != nil {
		return err
	}
	if k.kinds, err = kindindex.Decode(kindsData); err != nil {
		return err
	}

	blob, info, err := k.openSegment(ctx, store, manifest.SegmentEntries)
	if err != nil {
		return err
	}
	// Compressed blobs carry per-block checksums; a raw stream is verified whole.
	if compression == CompressionNone {
		_ = blobstore.Advise(blob, blobstore.AccessSequential)
		if err := verifyBlob(ctx, blob, info); err != nil {
			return err
		}
	}
	// Lookups touch scattered frames.
	_ = blobstore.Advise(blob, blobstore.AccessRandom)

	if compression != CompressionNone && k.opts.blockCacheSize > 0 {
		k.cache = cache.NewShardedLRUBlockCache(k.opts.blockCacheSize, nil)
	}
	mc := k.opts.metricsCollector
	k.blob, err = entryblob.Open(ctx, blob, entryblob.ReaderOptions{
		Cache:       k.cache,
		Path:        info.Path,
		Generation:  m.ID,
		OnCacheHit:  mc.RecordCacheHit,
		OnCacheMiss: mc.RecordCacheMiss,
	})
	if err != nil {
		return err
	}
	if k.blob.Compression() != compression {
		return fmt.Errorf("%w: blob compression %s, manifest %s", manifest.ErrCorrupted, k.blob.Compression(), compression)
	}
	return nil
}

func (k *Kosha) resolveCodec(m *manifest.Manifest) (codec.Codec, error) {
	c := k.opts.codec
	if !k.opts.codecSet {
		var ok bool
		if c, ok = codec.ByName(m.Codec); !ok {
			return nil, fmt.Errorf("unknown codec %q", m.Codec)
		}
	}
	if c.Name() != m.Codec || c.Version() != m.CodecVersion {
		return nil, fmt.Errorf("codec mismatch: store has %s/%d, reader has %s/%d",
			m.Codec, m.CodecVersion, c.Name(), c.Version())
	}
	return c, nil
}

// openSegment opens the segment of kind and checks its size against the
// manifest. The blob stays open until Close.
func (k *Kosha) openSegment(ctx context.Context, store blobstore.BlobStore, kind manifest.SegmentKind) (blobstore.Blob, manifest.SegmentInfo, error) {
	info, _ := k.manifest.Segment(kind)
	blob, err := store.Open(ctx, info.Path)
	if err != nil {
		// A committed manifest naming a missing segment is corruption.
		return nil, info, fmt.Errorf("%w: open %s: %v", manifest.ErrCorrupted, info.Path, err)
	}
	k.blobs = append(k.blobs, blob)
	if blob.Size() != info.Size {
		return nil, info, fmt.Errorf("%w: %s is %d bytes, manifest %d", manifest.ErrCorrupted, info.Path, blob.Size(), info.Size)
	}
	return blob, info, nil
}

// loadSegment returns the verified content of a segment. Local stores return
// the mapping itself.
func (k *Kosha) loadSegment(ctx context.Context, store blobstore.BlobStore, kind manifest.SegmentKind) ([]byte, error) {
	blob, info, err := k.openSegment(ctx, store, kind)
	if err != nil {
		return nil, err
	}
	_ = blobstore.Advise(blob, blobstore.AccessWillNeed)
	data, err := blobstore.Bytes(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", info.Path, err)
	}
	if hash.CRC32C(data) != info.Checksum {
		return nil, fmt.Errorf("%w: %s checksum mismatch", manifest.ErrCorrupted, info.Path)
	}
	return data, nil
}

func verifyBlob(ctx context.Context, blob blobstore.Blob, info manifest.SegmentInfo) error {
	var sum uint32
	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return fmt.Errorf("read %s: %w", info.Path, err)
		}
		sum = hash.CRC32C(data)
	} else {
		rc, err := blob.ReadRange(ctx, 0, blob.Size())
		if err != nil {
			return fmt.Errorf("read %s: %w", info.Path, err)
		}
		h := hash.NewCRC32C()
		_, err = io.Copy(h, rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", info.Path, err)
		}
		sum = h.Sum32()
	}
	if sum != info.Checksum {
		return fmt.Errorf("%w: %s checksum mismatch", manifest.ErrCorrupted, info.Path)
	}
	return nil
}

// Contains reports whether key is stored. It returns false after Close.
func (k *Kosha) Contains(key string) bool {
	start := time.Now()
	found := k.contains(key)
	k.opts.metricsCollector.RecordLookup(OpContains, found, time.Since(start))
	return found
}

func (k *Kosha) contains(key string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed || !k.bloom.MayContainString(key) {
		return false
	}
	return k.keys.Contains([]byte(key))
}

// ContainsPrefix reports whether some stored key starts with prefix. The
// empty prefix is contained iff the store holds at least one key.
func (k *Kosha) ContainsPrefix(prefix string) bool {
	start := time.Now()

	k.mu.RLock()
	found := !k.closed && k.keys.HasPrefix([]byte(prefix))
	k.mu.RUnlock()

	k.opts.metricsCollector.RecordLookup(OpContainsPrefix, found, time.Since(start))
	return found
}

// ContainsKind reports whether key holds at least one entry of kind, without
// decoding any entry.
func (k *Kosha) ContainsKind(key string, kind entry.Kind) bool {
	start := time.Now()
	found := k.containsKind(key, kind)
	k.opts.metricsCollector.RecordLookup(OpContainsKind, found, time.Since(start))
	return found
}

func (k *Kosha) containsKind(key string, kind entry.Kind) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed || !k.bloom.MayContainString(key) {
		return false
	}
	ord, ok := k.keys.Ordinal([]byte(key))
	return ok && k.kinds.Contains(uint32(ord), kind)
}

// GetAll returns the entries of key in insertion order.
//
// An absent key yields a nil slice and a nil error. A stored record that
// cannot be decoded fails the call with an error matching codec.ErrCorruptRecord.
func (k *Kosha) GetAll(ctx context.Context, key string) ([]entry.Entry, error) {
	start := time.Now()
	entries, err := k.getAll(ctx, key)
	k.opts.metricsCollector.RecordLookup(OpGetAll, len(entries) > 0, time.Since(start))
	return entries, err
}

func (k *Kosha) getAll(ctx context.Context, key string) ([]entry.Entry, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return nil, ErrClosed
	}
	if !k.bloom.MayContainString(key) {
		return nil, nil
	}
	p, ok := k.keys.Get([]byte(key))
	if !ok {
		return nil, nil
	}

	data, err := k.blob.ReadRange(ctx, p.Offset, p.Length)
	if err != nil {
		if errors.Is(err, entryblob.ErrCorrupted) {
			return nil, fmt.Errorf("%w: key %q: %w", codec.ErrCorruptRecord, key, err)
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}

	records, err := entryblob.SplitFrames(data, p.Count)
	if err != nil {
		return nil, fmt.Errorf("%w: key %q: %w", codec.ErrCorruptRecord, key, err)
	}

	entries := make([]entry.Entry, len(records))
	for i, rec := range records {
		e, err := k.codec.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("key %q entry %d: %w", key, i, err)
		}
		entries[i] = e
	}
	return entries, nil
}

// Keys iterates the stored keys starting with prefix in ascending bytewise
// order. Close must not be called from inside the loop.
func (k *Kosha) Keys(prefix string) iter.Seq[string] {
	return func(yield func(string) bool) {
		k.mu.RLock()
		defer k.mu.RUnlock()
		if k.closed {
			return
		}
		for it := range k.keys.Prefix([]byte(prefix)) {
			if !yield(string(it.Key)) {
				return
			}
		}
	}
}

// Len returns the number of distinct keys.
func (k *Kosha) Len() int {
	return k.keys.Len()
}

// EntryCount returns the number of stored entries over all keys.
func (k *Kosha) EntryCount() uint64 {
	return k.manifest.NumEntries
}

// SegmentStats describes one segment file.
type SegmentStats struct {
	Kind string
	Path string
	Size int64
}

// Stats describes an open store.
type Stats struct {
	Generation      uint64
	CreatedAt       time.Time
	Codec           string
	CodecVersion    uint32
	Compression     Compression
	BlockSize       int
	RestartInterval int

	Keys       int
	Entries    uint64
	KindCounts map[entry.Kind]uint64 // keys holding at least one entry of the kind

	Segments   []SegmentStats
	TotalBytes int64

	BloomFalsePositiveRate float64

	CacheHits   int64
	CacheMisses int64
}

// Stats returns metadata and sizes of the store.
func (k *Kosha) Stats() Stats {
	m := k.manifest
	s := Stats{
		Generation:             m.ID,
		CreatedAt:              m.CreatedAt,
		Codec:                  m.Codec,
		CodecVersion:           m.CodecVersion,
		Compression:            k.blob.Compression(),
		BlockSize:              int(m.BlockSize),
		RestartInterval:        k.keys.RestartInterval(),
		Keys:                   k.keys.Len(),
		Entries:                m.NumEntries,
		KindCounts:             make(map[entry.Kind]uint64, len(entry.Kinds)),
		BloomFalsePositiveRate: k.bloom.EstimatedFalsePositiveRate(),
	}
	for _, kind := range entry.Kinds {
		s.KindCounts[kind] = k.kinds.Cardinality(kind)
	}
	for _, seg := range m.Segments {
		s.Segments = append(s.Segments, SegmentStats{Kind: seg.Kind.String(), Path: seg.Path, Size: seg.Size})
		s.TotalBytes += seg.Size
	}
	if k.cache != nil {
		s.CacheHits, s.CacheMisses = k.cache.Stats()
	}
	return s
}

// Close releases the store's blobs and mappings. It is idempotent. After
// Close, GetAll returns ErrClosed and the predicates report false.
func (k *Kosha) Close() error {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.release()
}

func (k *Kosha) release() error {
	var firstErr error
	for _, b := range k.blobs {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	k.blobs = nil
	if k.cache != nil {
		if err := k.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
