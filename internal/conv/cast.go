package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("integer overflow")

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func inRange[T integer](v T, limit uint64) bool {
	return v >= 0 && uint64(v) <= limit
}

// Uint16 converts v to uint16 safely.
func Uint16[T integer](v T) (uint16, error) {
	if !inRange(v, math.MaxUint16) {
		return 0, fmt.Errorf("%w: %d does not fit uint16", ErrOverflow, v)
	}
	return uint16(v), nil
}

// Uint32 converts v to uint32 safely.
func Uint32[T integer](v T) (uint32, error) {
	if !inRange(v, math.MaxUint32) {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOverflow, v)
	}
	return uint32(v), nil
}

// Int converts v to int safely.
func Int(v uint64) (int, error) {
	if v > math.MaxInt {
		return 0, fmt.Errorf("%w: %d does not fit int", ErrOverflow, v)
	}
	return int(v), nil
}
