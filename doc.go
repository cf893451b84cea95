// Package kosha provides a write-once lexicon store for Go.
//
// A lexicon maps surface forms (keys) to one or more grammatical analyses
// (entries). The store is built once in bulk and then queried repeatedly:
//
//   - Builder accepts (key, entry) pairs in any order, with repeated keys,
//     and Finish writes them as an immutable store.
//   - Kosha opens a committed store and answers exact-key, prefix and
//     full-multimap lookups concurrently.
//
// # Quick Start
//
// Build a store:
//
//	b, err := kosha.NewBuilder("./lexicon")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = b.Insert("gacCati", tinanta)
//	_ = b.Insert("gacCati", subanta)
//	if err := b.Finish(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Query it:
//
//	k, err := kosha.Open(ctx, "./lexicon")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer k.Close()
//
//	k.Contains("gacCati")         // true
//	k.ContainsPrefix("gacC")      // true
//	entries, err := k.GetAll(ctx, "gacCati") // [tinanta, subanta]
//
// # Layout
//
// A store is a set of files in one directory (or blob store prefix):
//
//	keys-NNNNNN.idx      sorted, front-coded key index
//	entries-NNNNNN.blob  encoded entries, optionally block-compressed
//	bloom-NNNNNN.bf      bloom filter over keys
//	kinds-NNNNNN.rb      roaring bitmaps of key ordinals per entry kind
//	MANIFEST-NNNNNN.bin  codec, compression, counts and segment checksums
//	CURRENT              names the committed manifest; written last
//
// Rebuilding into the same location commits a new generation NNNNNN and
// removes the files of older ones.
//
// # Storage Backends
//
// Open and NewBuilder use a local directory. OpenStore and NewBuilderWithStore
// accept any blobstore.BlobStore, such as the in-memory store or the S3 and
// MinIO stores in blobstore/s3 and blobstore/minio.
package kosha
