package manifest

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest(id uint64) *Manifest {
	m := &Manifest{
		Version:         CurrentVersion,
		ID:              id,
		CreatedAt:       time.Unix(0, 1700000000123456789),
		Codec:           "binary",
		CodecVersion:    1,
		Compression:     "zstd",
		BlockSize:       64 << 10,
		RestartInterval: 16,
		NumKeys:         42,
		NumEntries:      99,
	}
	for i, k := range AllSegmentKinds {
		m.Segments = append(m.Segments, SegmentInfo{
			Kind:     k,
			Path:     SegmentName(k, id),
			Size:     int64(100 * (i + 1)),
			Checksum: uint32(0xC0FFEE + i),
		})
	}
	return m
}

func encode(t *testing.T, m *Manifest) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, m.WriteBinary(&buf))
	return buf.Bytes()
}

func TestBinaryRoundTrip(t *testing.T) {
	m := testManifest(7)

	m2, err := ReadBinary(bytes.NewReader(encode(t, m)))
	require.NoError(t, err)

	assert.True(t, m.CreatedAt.Equal(m2.CreatedAt))
	m2.CreatedAt = m.CreatedAt
	assert.Equal(t, m, m2)
}

func TestBinaryCorruption(t *testing.T) {
	data := encode(t, testManifest(1))

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] ^= 0xff
		_, err := ReadBinary(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-1] ^= 0xff
		_, err := ReadBinary(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ReadBinary(bytes.NewReader(data[:len(data)-3]))
		assert.ErrorIs(t, err, ErrCorrupted)

		_, err = ReadBinary(bytes.NewReader(data[:5]))
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("version", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad[4:8], 99)
		_, err := ReadBinary(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrIncompatibleVersion)
	})
}

func TestBinaryRejectsIncompleteManifest(t *testing.T) {
	m := testManifest(1)
	m.Segments = m.Segments[:2]

	_, err := ReadBinary(bytes.NewReader(encode(t, m)))
	assert.ErrorIs(t, err, ErrCorrupted)
}
