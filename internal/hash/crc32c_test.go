package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720 (iSCSI): 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))

	h := NewCRC32C()
	_, _ = h.Write([]byte("kosha"))
	assert.Equal(t, CRC32C([]byte("kosha")), h.Sum32())
}

func TestAppendSplitCRC32C(t *testing.T) {
	buf := AppendCRC32C([]byte("payload"))
	require.Len(t, buf, len("payload")+4)

	payload, ok := SplitCRC32C(buf)
	require.True(t, ok)
	assert.Equal(t, "payload", string(payload))

	buf[0] ^= 0xff
	_, ok = SplitCRC32C(buf)
	assert.False(t, ok)

	_, ok = SplitCRC32C([]byte{1, 2})
	assert.False(t, ok)
}
