package core

// Sensor configuration sequencer.
//
// The scripts below are replayed verbatim from USB captures of the
// vendor driver. The register values have no discoverable structure,
// so they stay as opaque ordered tables: do not reorder or "clean up".
// The device is sensitive to both the order and the inter-command
// delays; shortening a delay produced corrupted frames or a hung
// device during capture replay, and a botched run leaves the sensor
// needing a full close and reopen.

import (
	"crypto/sha1"
	"time"

	"github.com/toupcam/toupcam-go/types"
)

// regWrite is one step of an init script. The address spaces are
// distinguished by which write helper is used, not by address range.
type regWrite struct {
	sys  bool
	addr uint16
	val  uint16
	post time.Duration // mandatory settle after the write
}

// sensorDefaults is the full default-parameter block. It is written
// twice during init; on the second pass the 0x1004/0x1006 entries are
// replaced by the per-mode values from modeRegs.
var sensorDefaults = []regWrite{
	{false, 0x1008, 0x4299, 0},
	{false, 0x100f, 0x7fff, 0},
	{false, 0x1001, 0x0030, 0},
	{false, 0x1002, 0x0003, 0},
	{false, 0x1003, 0x07e9, 0},
	{false, 0x1000, 0x0003, 0},
	{false, 0x1004, 0x0087, 0}, // mode-dependent on the second pass
	{false, 0x1006, 0x1104, 0}, // mode-dependent on the second pass
	{false, 0x1009, 0x02c0, 0},
	{false, 0x1005, 0x0001, 0},
	{false, 0x1007, 0x7fff, 0},
	{false, 0x100a, 0x0000, 0},
	{false, 0x100b, 0x0100, 0},
	{false, 0x100c, 0x0000, 0},
	{false, 0x100d, 0x2090, 0},
	{false, 0x100e, 0x0103, 0},
	{false, 0x1010, 0x0000, 0},
	{false, 0x1011, 0x0000, 5 * time.Millisecond},
	{false, 0x1000, 0x0053, 0},
	{false, 0x1008, 0x0298, 5 * time.Millisecond},
}

// modeTransition sits between the two default-parameter passes. The
// 20ms floors are invariant contracts.
var modeTransition = []regWrite{
	{true, 0x1200, 0x0001, 20 * time.Millisecond},
	{true, 0x2000, 0x0000, 0},
	{true, 0x1200, 0x0002, 20 * time.Millisecond},
	{true, 0x0200, 0x0001, 0},
	{true, 0x0a00, 0x0001, 20 * time.Millisecond},
	{true, 0x0a00, 0x0000, 20 * time.Millisecond},
}

// modeRegs returns the two readout registers that vary with the mode
// in the second default-parameter pass.
func modeRegs(m CameraMode) (reg1004, reg1006 uint16) {
	if m == Mode0 {
		return 0x0087, 0x1104
	}
	return 0x0083, 0x11dc
}

// runScript replays one command table. The first failing step aborts
// the rest; there is no rollback.
func (c *Camera) runScript(script []regWrite) error {
	for _, s := range script {
		var err error
		if s.sys {
			err = c.sysWrite(s.addr, s.val)
		} else {
			err = c.sensorWrite(s.addr, s.val)
		}
		if err != nil {
			return err
		}
		if s.post > 0 {
			time.Sleep(s.post)
		}
	}
	return nil
}

// sensorInit drives the sensor to its streaming operating point:
// global enable and initial exposure profile, the default register
// block, the timed mode transition, the second default block with the
// mode-dependent fields, and the final resolution/exposure/gain
// commit.
func (c *Camera) sensorInit() error {
	if err := c.sysWrite(0x0200, 0x0001); err != nil {
		return err
	}
	if err := c.sysWrite(0x8000, 0x09b0); err != nil {
		return err
	}
	if err := c.SetExposure(0x0637, 0x0e24); err != nil {
		return err
	}

	if err := c.runScript(sensorDefaults); err != nil {
		return err
	}

	if err := c.runScript(modeTransition); err != nil {
		return err
	}

	second := make([]regWrite, len(sensorDefaults))
	copy(second, sensorDefaults)
	second[6].val, second[7].val = modeRegs(c.mode)
	if err := c.runScript(second); err != nil {
		return err
	}

	if err := c.sysWrite(0x103b, 0x0000); err != nil {
		return err
	}
	if err := c.sysWrite(0x2000, 0x0001); err != nil {
		return err
	}
	if err := c.sysWrite(0x1200, 0x0003); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	// Resolution related, per the captures.
	if err := c.sysWrite(0x8000, 0x060c); err != nil {
		return err
	}

	//  94000us - 0x0cbd
	// 150000us - 0x144e
	if err := c.SetExposure(0x000a, 0x0cbd); err != nil {
		return err
	}
	if err := c.sysWrite(0x0a00, 0x0001); err != nil {
		return err
	}
	if err := c.SetExposure(0x000a, 0x0cbd); err != nil {
		return err
	}
	return c.SetAnalogGain(0x610c)
}

// SetExposure commits an exposure profile. The four transfers form an
// atomic sub-sequence: no other register traffic may interleave, which
// the single-owner model guarantees.
func (c *Camera) SetExposure(timeVal, gainVal uint16) error {
	if c.closed {
		return ErrClosed
	}
	if err := c.sensorWrite(0x1063, 0x0000); err != nil {
		return err
	}
	if err := c.sensorWrite(0x1064, timeVal); err != nil {
		return err
	}
	if err := c.sysWrite(0x4000, 0x0000); err != nil {
		return err
	}
	return c.sysWrite(0x5000, gainVal)
}

// SetAnalogGain sets the sensor's analog gain register.
func (c *Camera) SetAnalogGain(v uint16) error {
	if c.closed {
		return ErrClosed
	}
	return c.sensorWrite(0x1061, v)
}

// ReadEEPROM dumps both EEPROM windows and returns the contents with a
// SHA-1 digest of the concatenation, useful for comparing units. Idle
// only.
func (c *Camera) ReadEEPROM() ([]byte, [sha1.Size]byte, error) {
	var digest [sha1.Size]byte
	if c.closed {
		return nil, digest, ErrClosed
	}
	if c.streaming {
		return nil, digest, ErrUnimplemented
	}

	buf := make([]byte, types.EEPROMLen0+types.EEPROMLen1)
	if err := c.venIn(types.ReqEEPROM, types.EEPROMOffset0, 0x0000, buf[:types.EEPROMLen0]); err != nil {
		return nil, digest, err
	}
	if err := c.venIn(types.ReqEEPROM, types.EEPROMOffset1, 0x0000, buf[types.EEPROMLen0:]); err != nil {
		return nil, digest, err
	}
	return buf, sha1.Sum(buf), nil
}
