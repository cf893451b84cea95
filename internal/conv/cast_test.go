package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint16(t *testing.T) {
	got, err := Uint16(65535)
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), got)

	_, err = Uint16(65536)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Uint16(-1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestUint32(t *testing.T) {
	tests := []struct {
		name string
		conv func() (uint32, error)
		want uint32
		err  bool
	}{
		{"zero int", func() (uint32, error) { return Uint32(0) }, 0, false},
		{"max from uint64", func() (uint32, error) { return Uint32(uint64(math.MaxUint32)) }, math.MaxUint32, false},
		{"too large", func() (uint32, error) { return Uint32(uint64(math.MaxUint32) + 1) }, 0, true},
		{"negative", func() (uint32, error) { return Uint32(int64(-5)) }, 0, true},
		{"int8", func() (uint32, error) { return Uint32(int8(7)) }, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.conv()
			if tt.err {
				assert.ErrorIs(t, err, ErrOverflow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInt(t *testing.T) {
	got, err := Int(123)
	require.NoError(t, err)
	assert.Equal(t, 123, got)

	got, err = Int(uint64(math.MaxInt))
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, got)

	_, err = Int(uint64(math.MaxInt) + 1)
	assert.ErrorIs(t, err, ErrOverflow)
}
