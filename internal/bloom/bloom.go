// Package bloom provides the key membership filter stored next to a key index.
//
// A Bloom filter can tell definitively that a key is NOT in the set and may
// report false positives for keys that are. Lookups consult it first so most
// absent keys are rejected without touching the index:
//
//   - "not present": the key is absent, no further work
//   - "maybe present": fall through to the key index
package bloom

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/hupe1980/kosha/internal/hash"
)

// ErrCorrupted indicates the serialized filter is invalid.
var ErrCorrupted = errors.New("bloom: corrupted filter data")

const headerSize = 16 // numBits u64, k u32, count u32

// Filter is a Bloom filter over byte strings.
//
//   - False positive rate: ~1% with 10 bits/element, ~0.1% with 14 bits/element
//   - Zero false negatives
//   - Hashing: one murmur3 128-bit hash split into two halves (double hashing)
type Filter struct {
	bits    []uint64
	numBits uint64
	k       uint32
	count   uint32
}

// Size computes the optimal filter size for the given parameters.
// Returns (numBits, numHashFunctions).
func Size(expectedElements int, falsePositiveRate float64) (numBits uint64, k uint32) {
	if expectedElements <= 0 {
		expectedElements = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	// m = -n*ln(p) / (ln(2)^2)
	m := float64(-expectedElements) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)
	// k = (m/n) * ln(2)
	kFloat := (m / float64(expectedElements)) * math.Ln2

	numBits = max(((uint64(m)+63)/64)*64, 64)
	k = uint32(min(max(math.Ceil(kFloat), 1), 16))
	return numBits, k
}

// New creates a filter with the given number of bits and hash functions.
func New(numBits uint64, k uint32) *Filter {
	numBits = max(((numBits+63)/64)*64, 64)
	k = min(max(k, 1), 16)
	return &Filter{
		bits:    make([]uint64, numBits/64),
		numBits: numBits,
		k:       k,
	}
}

// NewForSize creates a filter sized for expectedElements at falsePositiveRate.
func NewForSize(expectedElements int, falsePositiveRate float64) *Filter {
	return New(Size(expectedElements, falsePositiveRate))
}

// Add inserts a key. After Add(x), MayContain(x) is always true.
func (f *Filter) Add(key []byte) {
	h1, h2 := murmur3.Sum128(key)
	h2 |= 1
	for i := uint32(0); i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		f.bits[bit/64] |= 1 << (bit % 64)
	}
	f.count++
}

// AddString is Add for a string key.
func (f *Filter) AddString(key string) { f.Add([]byte(key)) }

// MayContain reports whether key might be in the set.
func (f *Filter) MayContain(key []byte) bool {
	h1, h2 := murmur3.Sum128(key)
	h2 |= 1
	for i := uint32(0); i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		if f.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// MayContainString is MayContain for a string key.
func (f *Filter) MayContainString(key string) bool { return f.MayContain([]byte(key)) }

// Count returns the number of elements added to the filter.
func (f *Filter) Count() uint32 {
	return f.count
}

// EstimatedFalsePositiveRate returns the expected false positive rate for the
// current fill.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	// FPR ≈ (1 - e^(-k*n/m))^k
	kn := float64(f.k) * float64(f.count)
	return math.Pow(1-math.Exp(-kn/float64(f.numBits)), float64(f.k))
}

// SizeBytes returns the size of the bit array in bytes.
func (f *Filter) SizeBytes() int {
	return len(f.bits) * 8
}

// MarshalBinary encodes the filter followed by a CRC32C of the encoding.
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize, headerSize+len(f.bits)*8+4)
	binary.LittleEndian.PutUint64(buf[0:8], f.numBits)
	binary.LittleEndian.PutUint32(buf[8:12], f.k)
	binary.LittleEndian.PutUint32(buf[12:16], f.count)
	for _, word := range f.bits {
		buf = binary.LittleEndian.AppendUint64(buf, word)
	}
	return hash.AppendCRC32C(buf), nil
}

// Decode parses a filter produced by MarshalBinary.
func Decode(data []byte) (*Filter, error) {
	payload, ok := hash.SplitCRC32C(data)
	if !ok || len(payload) < headerSize {
		return nil, ErrCorrupted
	}

	numBits := binary.LittleEndian.Uint64(payload[0:8])
	k := binary.LittleEndian.Uint32(payload[8:12])
	count := binary.LittleEndian.Uint32(payload[12:16])

	if numBits < 64 || numBits%64 != 0 || k < 1 || k > 16 {
		return nil, ErrCorrupted
	}
	words := payload[headerSize:]
	if uint64(len(words)) != numBits/8 {
		return nil, ErrCorrupted
	}

	bits := make([]uint64, numBits/64)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(words[i*8:])
	}
	return &Filter{bits: bits, numBits: numBits, k: k, count: count}, nil
}
