package mmap

import "errors"

// AccessPattern is an madvise-style hint for a mapping.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	// AccessSequential suits checksum passes over a whole segment.
	AccessSequential
	// AccessRandom suits point lookups into the entry blob.
	AccessRandom
	// AccessWillNeed prefetches segments that are decoded right away.
	AccessWillNeed
	AccessDontNeed
)

var (
	ErrClosed        = errors.New("mmap: mapping is closed")
	ErrInvalidSize   = errors.New("mmap: invalid file size")
	ErrOutOfBounds   = errors.New("mmap: out of bounds")
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
