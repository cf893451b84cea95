// Package entryblob implements the entry blob segment of a lexicon store.
//
// The blob holds a logical byte stream of frames, one per encoded entry:
//
//	frame := len uvarint, record
//
// Key postings address the logical stream. Physically the stream is either
// stored as is (CompressionNone, read zero-copy from a mapping) or split into
// fixed-size logical blocks that are compressed independently:
//
//	block   := uncompressed u32, compressed u32 (0 = raw), data
//	table   := { offset u64, stored u32, crc32c u32 } per block
//	trailer := logical u64, table u64, nblocks u32, blockSize u32,
//	           compression u8, version u8, pad u16, crc32c u32, magic u32
//
// The trailer checksum covers the block table and the trailer fields before it.
// Each table entry checksums its stored block.
package entryblob
