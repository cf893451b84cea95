// Package kindindex records, per entry kind, which keys hold at least one entry
// of that kind.
//
// Keys are identified by their ordinal in the sorted key index. Each kind maps
// to a roaring bitmap of ordinals, so "is this surface form a verb form?" is
// answered without decoding any entry.
//
// Layout:
//
//	nkinds u8
//	repeated: kind u8, len u32, roaring bitmap (portable format)
//	crc32c u32
package kindindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/kosha/entry"
	"github.com/hupe1980/kosha/internal/hash"
)

// ErrCorrupted indicates the serialized index is invalid.
var ErrCorrupted = errors.New("kindindex: corrupted data")

// Builder accumulates ordinals per kind.
type Builder struct {
	bitmaps map[entry.Kind]*roaring.Bitmap
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{bitmaps: make(map[entry.Kind]*roaring.Bitmap)}
}

// Add marks key ordinal as holding an entry of kind.
func (b *Builder) Add(ordinal uint32, kind entry.Kind) {
	bm, ok := b.bitmaps[kind]
	if !ok {
		bm = roaring.New()
		b.bitmaps[kind] = bm
	}
	bm.Add(ordinal)
}

// MarshalBinary serializes the bitmaps in ascending kind order.
func (b *Builder) MarshalBinary() ([]byte, error) {
	kinds := make([]entry.Kind, 0, len(b.bitmaps))
	for k := range b.bitmaps {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	var buf bytes.Buffer
	buf.WriteByte(uint8(len(kinds)))
	for _, k := range kinds {
		bm := b.bitmaps[k]
		bm.RunOptimize()

		var body bytes.Buffer
		if _, err := bm.WriteTo(&body); err != nil {
			return nil, fmt.Errorf("kindindex: write %s bitmap: %w", k, err)
		}
		buf.WriteByte(uint8(k))
		buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(body.Len())))
		buf.Write(body.Bytes())
	}
	return hash.AppendCRC32C(buf.Bytes()), nil
}

// Index answers kind membership for key ordinals.
type Index struct {
	bitmaps map[entry.Kind]*roaring.Bitmap
}

// Decode parses data produced by Builder.MarshalBinary.
func Decode(data []byte) (*Index, error) {
	payload, ok := hash.SplitCRC32C(data)
	if !ok || len(payload) < 1 {
		return nil, ErrCorrupted
	}

	n := int(payload[0])
	payload = payload[1:]
	ix := &Index{bitmaps: make(map[entry.Kind]*roaring.Bitmap, n)}
	for range n {
		if len(payload) < 5 {
			return nil, ErrCorrupted
		}
		kind := entry.Kind(payload[0])
		size := binary.LittleEndian.Uint32(payload[1:5])
		payload = payload[5:]
		if uint64(size) > uint64(len(payload)) {
			return nil, ErrCorrupted
		}

		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(payload[:size])); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		ix.bitmaps[kind] = bm
		payload = payload[size:]
	}
	if len(payload) != 0 {
		return nil, ErrCorrupted
	}
	return ix, nil
}

// Contains reports whether key ordinal holds an entry of kind.
func (ix *Index) Contains(ordinal uint32, kind entry.Kind) bool {
	bm, ok := ix.bitmaps[kind]
	return ok && bm.Contains(ordinal)
}

// Cardinality returns the number of keys holding an entry of kind.
func (ix *Index) Cardinality(kind entry.Kind) uint64 {
	if bm, ok := ix.bitmaps[kind]; ok {
		return bm.GetCardinality()
	}
	return 0
}

// Kinds returns the kinds present at key ordinal, in ascending order.
func (ix *Index) Kinds(ordinal uint32) []entry.Kind {
	var out []entry.Kind
	for _, k := range entry.Kinds {
		if ix.Contains(ordinal, k) {
			out = append(out, k)
		}
	}
	return out
}
