// Package hash provides the checksums used by every on-disk structure.
//
// All checksums are CRC32-Castagnoli (CRC32C), which Go's hash/crc32 computes
// with hardware instructions on x86 (SSE4.2) and ARM64.
//
//	checksum := hash.CRC32C(data)
//
// Segments that end in their own checksum use AppendCRC32C when writing and
// SplitCRC32C when opening.
package hash
