package device

import (
	"errors"
	"fmt"
)

// ErrMappingNotFound is returned when no key-mapping blob exists for a device.
var ErrMappingNotFound = errors.New("key mapping not found")

// ErrInvalidDevice is returned when a device identifier is empty or path-like.
var ErrInvalidDevice = errors.New("invalid device id")

// IOError reports a failure reading or writing the underlying preference
// store or blob source. It is never retried.
type IOError struct {
	Op   string // "read" or "write"
	Path string // preference key or blob path
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
