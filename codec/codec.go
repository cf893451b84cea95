// Package codec turns entries into self-contained byte records and back.
//
// A store records the name and version of the codec it was built with. Changing
// either is a breaking-change boundary: records written by one codec are not
// readable by another, so Open rejects a store whose codec does not match.
package codec

import (
	"errors"

	"github.com/hupe1980/kosha/entry"
)

// ErrCorruptRecord is returned when a stored record cannot be decoded: it is
// truncated, has trailing bytes, carries an unknown tag or version, or holds an
// out-of-range value.
var ErrCorruptRecord = errors.New("codec: corrupt record")

// Codec encodes and decodes entries.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name is the stable identifier persisted in the manifest.
	Name() string
	// Version is the record format version persisted next to Name.
	Version() uint32
	// Append validates e, encodes it and appends the record to dst.
	Append(dst []byte, e entry.Entry) ([]byte, error)
	// Decode parses exactly one record. The returned entry does not alias data.
	Decode(data []byte) (entry.Entry, error)
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case Binary{}.Name():
		return Binary{}, true
	case JSON{}.Name():
		return JSON{}, true
	default:
		return nil, false
	}
}

// Names lists the built-in codec names.
func Names() []string {
	return []string{Binary{}.Name(), JSON{}.Name()}
}

// Default is the codec used by new builders unless one is configured.
var Default Codec = Binary{}
