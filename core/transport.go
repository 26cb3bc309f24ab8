package core

// Helpers for the different kinds of vendor control transactions. All
// of them use the fixed vendor|device request type; the raw transfers
// live behind the Device interface.

import (
	"encoding/binary"
	"fmt"

	"github.com/toupcam/toupcam-go/types"
)

// venIn issues a vendor IN control transfer. No retries; any USB-layer
// failure surfaces as a TransportError.
func (c *Camera) venIn(req uint8, val, idx uint16, buf []byte) error {
	if _, err := c.dev.ControlIn(req, val, idx, buf, c.timeout); err != nil {
		return &TransportError{
			Kind: TransferControl,
			Op:   fmt.Sprintf("in req=%#02x val=%#04x idx=%#04x", req, val, idx),
			Err:  err,
		}
	}
	return nil
}

// venOut issues a vendor OUT control transfer.
func (c *Camera) venOut(req uint8, val, idx uint16, buf []byte) error {
	if _, err := c.dev.ControlOut(req, val, idx, buf, c.timeout); err != nil {
		return &TransportError{
			Kind: TransferControl,
			Op:   fmt.Sprintf("out req=%#02x val=%#04x idx=%#04x", req, val, idx),
			Err:  err,
		}
	}
	return nil
}

// sensorWrite writes one sensor-space register. An accepted write acks
// with the ready byte and gets a confirmation read at the fixed index.
// A different ack is logged but not fatal: that matches the observed
// vendor driver, and the device keeps working after it.
func (c *Camera) sensorWrite(addr, val uint16) error {
	var buf [1]byte
	if err := c.venIn(types.ReqWrite, val, addr, buf[:]); err != nil {
		return err
	}
	if buf[0] != types.WriteReady {
		c.log.Logf("camera - sensor write to %#04x returned %#02x?", addr, buf[0])
		return nil
	}
	return c.venIn(types.ReqWrite, val, types.WriteConfirmIndex, buf[:])
}

// sysWrite writes one system-space register. Structurally the same
// transfer as a sensor write, minus the confirmation read.
func (c *Camera) sysWrite(addr, val uint16) error {
	var buf [1]byte
	return c.venIn(types.ReqWrite, val, addr, buf[:])
}

// sysRead reads one 16-bit little-endian system register.
func (c *Camera) sysRead(addr uint16) (uint16, error) {
	var buf [2]byte
	if err := c.venIn(types.ReqRead, 0x0000, addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}
