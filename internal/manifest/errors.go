package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned when the manifest version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrNotFound is returned when the location has no CURRENT marker.
	ErrNotFound = errors.New("manifest not found")

	// ErrCorrupted is returned for a manifest that fails validation.
	ErrCorrupted = errors.New("manifest corrupted")
)
