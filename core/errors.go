package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - no camera with the expected VID/PID on any bus.
	ErrNotFound = errors.New("device not found")

	// ErrFirstFrame - the readout right after stream start is
	// truncated by the device. Benign; discard and read again.
	ErrFirstFrame = errors.New("truncated first frame")

	// ErrConfigLocked - mode or depth change attempted while the
	// camera is streaming.
	ErrConfigLocked = errors.New("configuration locked while streaming")

	// ErrUnimplemented - the operation is not supported in the
	// camera's current state.
	ErrUnimplemented = errors.New("operation unsupported in current state")

	// ErrClosed - operation on a closed camera.
	ErrClosed = errors.New("camera closed")

	// ErrReadInFlight - a second ReadFrame was issued against a handle
	// that already has one in flight.
	ErrReadInFlight = errors.New("another read in flight")
)

// TransferKind says which kind of USB transfer failed.
type TransferKind int

const (
	TransferControl TransferKind = iota
	TransferBulk
)

func (k TransferKind) String() string {
	if k == TransferBulk {
		return "bulk"
	}
	return "control"
}

// TransportError wraps a USB-layer failure. The driver never retries
// these; the caller decides whether to reopen the device.
type TransportError struct {
	Kind TransferKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transfer failed: %s: %s", e.Kind, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
