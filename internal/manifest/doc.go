// Package manifest implements atomic manifest persistence for a lexicon store.
//
// # Overview
//
// A manifest describes one committed generation of a store: the codec and
// compression the entries were written with, key and entry counts, and the
// path, size and checksum of every segment file.
//
// # Binary Format
//
//	Header (16 bytes):
//	  Magic    (4 bytes) - 0x4B4F5348 ("KOSH")
//	  Version  (4 bytes) - Format version (currently 1)
//	  Checksum (4 bytes) - CRC32C of payload
//	  Length   (4 bytes) - Payload length in bytes
//
//	Payload:
//	  ID              (8 bytes) - Generation
//	  CreatedAt       (8 bytes) - Unix nanoseconds
//	  Codec           (string)
//	  CodecVersion    (4 bytes)
//	  Compression     (string)
//	  BlockSize       (4 bytes)
//	  RestartInterval (4 bytes)
//	  NumKeys         (8 bytes)
//	  NumEntries      (8 bytes)
//	  NumSegments     (4 bytes)
//	  Segments[]      - kind (1 byte), size (8 bytes), crc32c (4 bytes), path (string)
//
// Strings are length-prefixed (2-byte length + bytes).
//
// # Atomic Protocol
//
// Save follows a two-phase commit protocol:
//
//  1. Write the manifest blob to MANIFEST-NNNNNN.bin (N is the generation)
//  2. Write the CURRENT marker naming it
//
// CURRENT is always written last, so a location without CURRENT holds no
// openable store regardless of the other files present. On local filesystems
// each write is an atomic rename; a DynamoDB commit store turns step 2 into a
// conditional write.
package manifest
