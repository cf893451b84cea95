package kosha

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kosha/internal/resource"
)

var (
	// ErrAlreadyFinished is returned by Insert and Finish on a spent Builder.
	ErrAlreadyFinished = errors.New("builder already finished")

	// ErrIOFailure is matched by every storage failure during Finish.
	ErrIOFailure = errors.New("io failure")

	// ErrOpenFailure is matched by every error returned from Open.
	ErrOpenFailure = errors.New("open failure")

	// ErrInvalidKey is returned for an empty key or a key containing NUL.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidEntry is returned when an entry fails validation or encoding.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrClosed is returned by operations on a closed Kosha.
	ErrClosed = errors.New("kosha closed")

	// ErrMemoryLimitExceeded is returned by Insert when buffered records would
	// exceed the configured memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// IOError describes a storage failure while building a store.
//
// It matches ErrIOFailure. The underlying error can be accessed via errors.Unwrap.
type IOError struct {
	Op   string // "create", "write", "commit", "list", ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", ErrIOFailure, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", ErrIOFailure, e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIOFailure.
func (e *IOError) Is(target error) bool { return target == ErrIOFailure }

// OpenError describes why a store could not be opened.
//
// It matches ErrOpenFailure. When the location holds no committed store it
// also matches fs.ErrNotExist.
type OpenError struct {
	Location string
	Err      error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrOpenFailure, e.Location, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Is reports whether target is ErrOpenFailure.
func (e *OpenError) Is(target error) bool { return target == ErrOpenFailure }

func ioError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func openError(location string, err error) error {
	return &OpenError{Location: location, Err: err}
}
