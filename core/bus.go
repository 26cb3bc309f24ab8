package core

import "time"

// Package with the driver logic of the camera: the lifecycle state
// machine, the sensor init sequencer, the frame assembler and the
// streaming pipeline.
//
// USB package is not imported - the usb package uses cgo through its
// gousb backend, so building and testing the driver logic on its own
// stays fast when we use abstract interfaces instead.

// Bus* interfaces are implemented in the usb package.

// Bus enumerates and opens camera devices.
type Bus interface {
	Enumerate() ([]Info, error)
	Connect(path string) (Device, error)
	Has(path string) bool
}

// Info describes one enumerated device.
type Info struct {
	Path      string
	VendorID  int
	ProductID int
}

// Device is one opened camera with configuration 1 selected and
// interface 0 claimed.
//
// Control transfers use the fixed vendor|device request type; only the
// direction differs between the two calls. BulkIn reads the streaming
// endpoint and may return fewer bytes than requested, which is the
// device's end-of-frame marker.
//
// Close releases the interface and resets the handle. It is
// best-effort throughout: every sub-step runs even if an earlier one
// failed.
type Device interface {
	ControlIn(req uint8, val, idx uint16, buf []byte, timeout time.Duration) (int, error)
	ControlOut(req uint8, val, idx uint16, buf []byte, timeout time.Duration) (int, error)
	BulkIn(buf []byte, timeout time.Duration) (int, error)
	Close() error
}
