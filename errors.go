package zcnbridge

import (
	"errors"
	"fmt"

	"github.com/obinnaokechukwu/zcnbridge/callback"
)

var (
	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("zcnbridge: client is closed")

	// ErrAlreadyOpen indicates a native client is already open. The native
	// core calls back into a single gateway, so only one may exist at a time.
	ErrAlreadyOpen = errors.New("zcnbridge: native client already open")

	// ErrUnsupported indicates the native core cannot be loaded on this platform.
	ErrUnsupported = errors.New("zcnbridge: native core not supported on this platform")
)

// StatusError is a completed operation that reported a non-success status.
type StatusError struct {
	Op      callback.Kind
	Status  callback.Status
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("zcnbridge: %v: %v", e.Op, e.Status)
	}
	return fmt.Sprintf("zcnbridge: %v: %v: %s", e.Op, e.Status, e.Message)
}

// StatusOf returns the status carried by err, or StatusSuccess if err is nil
// and StatusUnknown if err carries none.
func StatusOf(err error) callback.Status {
	if err == nil {
		return callback.StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return callback.StatusUnknown
}
