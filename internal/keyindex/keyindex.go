// Package keyindex implements the sorted key table of a lexicon store.
//
// Keys are stored in ascending bytewise order, front-coded against the previous
// key. Every RestartInterval-th key is stored in full and its offset recorded in
// a restart array, so a lookup is a binary search over restart points followed
// by a scan of at most RestartInterval records.
//
// Layout:
//
//	record   := nshared uvarint, nunshared uvarint, off uvarint, len uvarint, count uvarint, suffix
//	restarts := uint32[nrestart]
//	trailer  := nrestart u32, nkeys u32, interval u32, crc32c u32
//
// The checksum covers everything before it. Each record carries the key's
// posting: the byte range of its entry frames in the logical entry blob and the
// number of frames in that range.
package keyindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/hupe1980/kosha/internal/conv"
	"github.com/hupe1980/kosha/internal/hash"
)

// DefaultRestartInterval is the number of keys between full (uncompressed) keys.
const DefaultRestartInterval = 16

const trailerSize = 16

var order = binary.LittleEndian

var (
	// ErrOutOfOrder is returned when keys are added out of strictly ascending order.
	ErrOutOfOrder = errors.New("keyindex: keys out of order")
	// ErrCorrupted indicates an index that fails validation.
	ErrCorrupted = errors.New("keyindex: corrupted index")
)

// Posting locates the entries of one key in the logical entry blob.
type Posting struct {
	// Offset of the first frame.
	Offset uint64
	// Length in bytes of all frames of the key.
	Length uint64
	// Count of frames (entries).
	Count uint32
}

// Writer builds an index from keys added in ascending order.
type Writer struct {
	buf      []byte
	lastKey  []byte
	restarts []uint32
	interval int
	n        int
}

// NewWriter returns a Writer. A non-positive interval selects DefaultRestartInterval.
func NewWriter(interval int) *Writer {
	if interval <= 0 {
		interval = DefaultRestartInterval
	}
	return &Writer{interval: interval}
}

// Add appends key with its posting. Keys must be strictly ascending.
func (w *Writer) Add(key []byte, p Posting) error {
	if w.n > 0 && bytes.Compare(key, w.lastKey) <= 0 {
		return fmt.Errorf("%w: %q after %q", ErrOutOfOrder, key, w.lastKey)
	}

	if _, err := conv.Uint32(w.n + 1); err != nil {
		return fmt.Errorf("keyindex: too many keys: %w", err)
	}

	var shared int
	if w.n%w.interval == 0 {
		off, err := conv.Uint32(len(w.buf))
		if err != nil {
			return fmt.Errorf("keyindex: index too large: %w", err)
		}
		w.restarts = append(w.restarts, off)
	} else {
		n := min(len(key), len(w.lastKey))
		for shared < n && key[shared] == w.lastKey[shared] {
			shared++
		}
	}

	w.buf = binary.AppendUvarint(w.buf, uint64(shared))
	w.buf = binary.AppendUvarint(w.buf, uint64(len(key)-shared))
	w.buf = binary.AppendUvarint(w.buf, p.Offset)
	w.buf = binary.AppendUvarint(w.buf, p.Length)
	w.buf = binary.AppendUvarint(w.buf, uint64(p.Count))
	w.buf = append(w.buf, key[shared:]...)

	w.lastKey = append(w.lastKey[:0], key...)
	w.n++
	return nil
}

// Len returns the number of keys added so far.
func (w *Writer) Len() int { return w.n }

// Finish appends the restart array and trailer and returns the encoded index.
// The Writer must not be used afterwards.
func (w *Writer) Finish() []byte {
	out := w.buf
	for _, off := range w.restarts {
		out = order.AppendUint32(out, off)
	}
	out = order.AppendUint32(out, uint32(len(w.restarts)))
	out = order.AppendUint32(out, uint32(w.n))
	out = order.AppendUint32(out, uint32(w.interval))
	out = hash.AppendCRC32C(out)
	w.buf = nil
	return out
}

// Index is a read-only view over an encoded key index.
// It is safe for concurrent use. The backing slice is not copied and must
// outlive the Index (e.g. a memory mapping).
type Index struct {
	records  []byte
	restarts []byte
	nrestart int
	n        int
	interval int
}

// Open validates data and returns an Index over it.
//
// Validation walks every record once, so a successfully opened index never
// fails or panics on lookup.
func Open(data []byte) (*Index, error) {
	payload, ok := hash.SplitCRC32C(data)
	if !ok || len(payload) < trailerSize-4 {
		return nil, fmt.Errorf("%w: bad checksum", ErrCorrupted)
	}

	tr := payload[len(payload)-12:]
	nrestart := int(order.Uint32(tr[0:]))
	n := int(order.Uint32(tr[4:]))
	interval := int(order.Uint32(tr[8:]))
	body := payload[:len(payload)-12]

	if interval <= 0 || nrestart != (n+interval-1)/interval || nrestart*4 > len(body) {
		return nil, fmt.Errorf("%w: bad trailer", ErrCorrupted)
	}

	ix := &Index{
		records:  body[:len(body)-nrestart*4],
		restarts: body[len(body)-nrestart*4:],
		nrestart: nrestart,
		n:        n,
		interval: interval,
	}
	if err := ix.validate(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) validate() error {
	c := cursor{ix: ix}
	var prev []byte
	for i := 0; i < ix.n; i++ {
		if i%ix.interval == 0 && int(order.Uint32(ix.restarts[(i/ix.interval)*4:])) != c.off {
			return fmt.Errorf("%w: restart %d misplaced", ErrCorrupted, i/ix.interval)
		}
		if err := c.decode(i%ix.interval == 0); err != nil {
			return err
		}
		if i > 0 && bytes.Compare(c.key, prev) <= 0 {
			return fmt.Errorf("%w: keys not ascending at %d", ErrCorrupted, i)
		}
		prev = append(prev[:0], c.key...)
	}
	if c.off != len(ix.records) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupted, len(ix.records)-c.off)
	}
	return nil
}

// Len returns the number of keys.
func (ix *Index) Len() int { return ix.n }

// RestartInterval returns the restart interval the index was built with.
func (ix *Index) RestartInterval() int { return ix.interval }

// Get returns the posting for key.
func (ix *Index) Get(key []byte) (Posting, bool) {
	c := ix.seek(key)
	if c.valid && bytes.Equal(c.key, key) {
		return c.posting, true
	}
	return Posting{}, false
}

// Contains reports whether key is present.
func (ix *Index) Contains(key []byte) bool {
	_, ok := ix.Get(key)
	return ok
}

// Ordinal returns the position of key in sorted order.
func (ix *Index) Ordinal(key []byte) (int, bool) {
	c := ix.seek(key)
	if c.valid && bytes.Equal(c.key, key) {
		return c.ord, true
	}
	return 0, false
}

// HasPrefix reports whether any key starts with prefix.
// The empty prefix matches iff the index is non-empty.
func (ix *Index) HasPrefix(prefix []byte) bool {
	c := ix.seek(prefix)
	return c.valid && bytes.HasPrefix(c.key, prefix)
}

// Item is one key of the index together with its ordinal and posting.
type Item struct {
	Key     []byte
	Ordinal int
	Posting Posting
}

// Seek iterates keys >= start in ascending order. The Key slice of an Item is
// only valid until the next iteration.
func (ix *Index) Seek(start []byte) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for c := ix.seek(start); c.valid; c.next() {
			if !yield(Item{Key: c.key, Ordinal: c.ord, Posting: c.posting}) {
				return
			}
		}
	}
}

// Prefix iterates keys starting with prefix in ascending order.
func (ix *Index) Prefix(prefix []byte) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for it := range ix.Seek(prefix) {
			if !bytes.HasPrefix(it.Key, prefix) {
				return
			}
			if !yield(it) {
				return
			}
		}
	}
}

// All iterates every key in ascending order.
func (ix *Index) All() iter.Seq[Item] {
	return ix.Seek(nil)
}

// seek positions a cursor at the first key >= target.
func (ix *Index) seek(target []byte) cursor {
	// First restart whose key is greater than target; the answer lies in the
	// run before it.
	r := sort.Search(ix.nrestart, func(i int) bool {
		return bytes.Compare(ix.restartKey(i), target) > 0
	})
	start := max(r-1, 0)

	c := cursor{ix: ix, off: ix.restartOffset(start), ord: start*ix.interval - 1}
	for c.next(); c.valid; c.next() {
		if bytes.Compare(c.key, target) >= 0 {
			break
		}
	}
	return c
}

func (ix *Index) restartOffset(i int) int {
	if i >= ix.nrestart {
		return len(ix.records)
	}
	return int(order.Uint32(ix.restarts[i*4:]))
}

// restartKey returns the full key stored at restart i without copying.
func (ix *Index) restartKey(i int) []byte {
	p := ix.records[ix.restartOffset(i):]
	_, n := binary.Uvarint(p) // nshared, always 0
	p = p[n:]
	unshared, n := binary.Uvarint(p)
	p = p[n:]
	for range 3 {
		_, n = binary.Uvarint(p)
		p = p[n:]
	}
	return p[:unshared]
}

// cursor walks records forward. Each call site owns its cursor, so concurrent
// lookups never share state.
type cursor struct {
	ix      *Index
	off     int
	ord     int
	key     []byte
	posting Posting
	valid   bool
}

// next advances to the following record. Only used on validated indexes.
func (c *cursor) next() {
	if c.off >= len(c.ix.records) {
		c.valid = false
		return
	}
	_ = c.decode(false)
	c.valid = true
	c.ord++
}

// decode reads the record at c.off. restart requires nshared == 0.
func (c *cursor) decode(restart bool) error {
	p := c.ix.records
	var fields [5]uint64
	for i := range fields {
		v, n := binary.Uvarint(p[c.off:])
		if n <= 0 {
			return fmt.Errorf("%w: bad varint at %d", ErrCorrupted, c.off)
		}
		fields[i] = v
		c.off += n
	}
	shared, unshared := fields[0], fields[1]
	if shared > uint64(len(c.key)) || (restart && shared != 0) || unshared > uint64(len(p)-c.off) {
		return fmt.Errorf("%w: bad key lengths at %d", ErrCorrupted, c.off)
	}
	if fields[4] > uint64(^uint32(0)) {
		return fmt.Errorf("%w: bad count at %d", ErrCorrupted, c.off)
	}
	c.key = append(c.key[:shared], p[c.off:c.off+int(unshared)]...)
	c.off += int(unshared)
	c.posting = Posting{Offset: fields[2], Length: fields[3], Count: uint32(fields[4])}
	return nil
}
