package cache

import "context"

// CacheKind is used to separate key spaces.
type CacheKind uint8

const (
	CacheKindUnknown    CacheKind = iota
	CacheKindBlob                 // raw blob store blocks (CachingStore)
	CacheKindEntryBlock           // decompressed entry blob blocks
)

// CacheKey identifies an immutable block.
//
// Generation separates the files of successive builds that reuse a location,
// so a block cached for an old generation is never served for a new one.
type CacheKey struct {
	Kind       CacheKind
	Generation uint64
	// Path identifies the source blob.
	Path string
	// Offset is a logical block identifier (block index or byte offset).
	Offset uint64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key CacheKey) (b []byte, ok bool)
	// Set caches a block. The cache retains b; callers must not modify it afterwards.
	Set(ctx context.Context, key CacheKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	// Close releases any resources.
	Close() error
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
