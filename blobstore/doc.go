// Package blobstore provides the storage abstraction for lexicon store files.
//
// BlobStore is the interface for reading and writing immutable blobs (segments,
// manifests, the CURRENT marker). Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, mmap reads, atomic tmp+rename writes
//   - MemoryStore: in-memory, for tests
//   - CachingStore: block cache in front of any store
//   - s3.Store, s3.DDBCommitStore: Amazon S3, optionally with DynamoDB commits
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)           // Open for reading
//	    Create(ctx, name) (WritableBlob, error) // Create for streaming writes
//	    Put(ctx, name, data) error              // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// A blob written through Create becomes visible only when Close succeeds.
// Abort discards it.
package blobstore
