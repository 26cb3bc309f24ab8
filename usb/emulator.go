package usb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/toupcam/toupcam-go/core"
	"github.com/toupcam/toupcam-go/types"
)

// Emulator is an in-memory camera used in tests and hardware-less
// runs. It models just enough of the vendor protocol for the driver:
// register writes with their ack byte and confirmation read, the
// stream-control commands, EEPROM windows, and bulk frame readout
// including the truncated first frame the real device produces after
// init.

const EmulatorPath = "emulator"

var errBulkTimeout = errors.New("emulator: bulk read timed out")

type Emulator struct {
	dev *EmulatorDevice
}

func InitEmulator() *Emulator {
	return &Emulator{dev: newEmulatorDevice()}
}

// Device exposes the simulated device for inspection and fault
// injection in tests.
func (b *Emulator) Device() *EmulatorDevice { return b.dev }

func (b *Emulator) Enumerate() ([]core.Info, error) {
	return []core.Info{{
		Path:      EmulatorPath,
		VendorID:  types.VendorID,
		ProductID: types.ProductID,
	}}, nil
}

func (b *Emulator) Has(path string) bool {
	return path == EmulatorPath
}

// Connect hands out the simulated device; reconnecting after a close
// models replugging.
func (b *Emulator) Connect(path string) (core.Device, error) {
	if path != EmulatorPath {
		return nil, core.ErrNotFound
	}
	b.dev.mu.Lock()
	b.dev.closed = false
	b.dev.mu.Unlock()
	return b.dev, nil
}

// RegWrite is one recorded register write, in arrival order.
type RegWrite struct {
	Addr uint16
	Val  uint16
}

// EmulatorDevice implements core.Device.
type EmulatorDevice struct {
	mu sync.Mutex

	regs   map[uint16]uint16
	writes []RegWrite

	key    uint16
	bulkOn bool
	closed bool

	frameLen   int
	framePos   int
	firstTrunc bool // next readout is the truncated post-init frame
	truncNext  bool // fault: truncate the next regular frame

	ack     byte
	pace    time.Duration // sleep per bulk chunk
	failReq map[uint8]error
	failBlk error
}

func newEmulatorDevice() *EmulatorDevice {
	return &EmulatorDevice{
		regs:     make(map[uint16]uint16),
		failReq:  make(map[uint8]error),
		frameLen: core.FrameLen(core.Mode1, core.Depth12),
		ack:      types.WriteReady,
	}
}

func (d *EmulatorDevice) ControlIn(req uint8, val, idx uint16, buf []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errClosedDevice
	}
	if err := d.failReq[req]; err != nil {
		return 0, err
	}

	switch req {
	case types.ReqWrite:
		if idx == types.WriteConfirmIndex {
			// confirmation read after an accepted sensor write
			if len(buf) > 0 {
				buf[0] = d.ack
			}
			return len(buf), nil
		}
		d.regs[idx] = val
		d.writes = append(d.writes, RegWrite{Addr: idx, Val: val})
		if len(buf) > 0 {
			buf[0] = d.ack
		}
		return len(buf), nil

	case types.ReqRead:
		if len(buf) >= 2 {
			binary.LittleEndian.PutUint16(buf, d.regs[idx])
		}
		return len(buf), nil

	case types.ReqKeySet:
		d.key = val>>4 | val<<12
		return len(buf), nil

	case types.ReqStopStatus:
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil

	case types.ReqEEPROM:
		for i := range buf {
			buf[i] = byte(int(val) + i)
		}
		return len(buf), nil
	}
	return 0, fmt.Errorf("emulator: unhandled IN request %#02x", req)
}

func (d *EmulatorDevice) ControlOut(req uint8, val, idx uint16, buf []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errClosedDevice
	}
	if err := d.failReq[req]; err != nil {
		return 0, err
	}

	if req != types.ReqStream {
		return 0, fmt.Errorf("emulator: unhandled OUT request %#02x", req)
	}
	switch val {
	case types.StreamEnableConfig:
		// config phase; nothing to model
	case types.StreamEnableBulk:
		d.bulkOn = true
		d.firstTrunc = true
		d.framePos = 0
	case types.StreamStop:
		d.bulkOn = false
	}
	return len(buf), nil
}

func (d *EmulatorDevice) BulkIn(buf []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, errClosedDevice
	}
	if err := d.failBlk; err != nil {
		d.mu.Unlock()
		return 0, err
	}
	if !d.bulkOn {
		// nothing to read out; behave like the real endpoint and block
		// until the timeout
		d.mu.Unlock()
		time.Sleep(timeout)
		return 0, errBulkTimeout
	}

	target := d.frameLen
	if d.firstTrunc {
		target = d.frameLen / 3
	} else if d.truncNext {
		target = d.frameLen / 2
	}

	n := len(buf)
	if rem := target - d.framePos; n > rem {
		n = rem
	}
	for i := 0; i < n; i++ {
		buf[i] = byte(d.framePos + i)
	}
	d.framePos += n

	if n < len(buf) {
		// short read: frame readout complete
		d.framePos = 0
		d.firstTrunc = false
		d.truncNext = false
	}
	pace := d.pace
	d.mu.Unlock()

	if pace > 0 {
		time.Sleep(pace)
	}
	return n, nil
}

func (d *EmulatorDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.bulkOn = false
	return nil
}

// Writes returns a copy of all recorded register writes, both address
// spaces, in order. Confirmation reads are not recorded.
func (d *EmulatorDevice) Writes() []RegWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RegWrite, len(d.writes))
	copy(out, d.writes)
	return out
}

// Reg returns the last value written to a register.
func (d *EmulatorDevice) Reg(addr uint16) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[addr]
}

// Key returns the current de-obfuscation key.
func (d *EmulatorDevice) Key() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.key
}

// SetAck overrides the ack byte returned for register writes.
func (d *EmulatorDevice) SetAck(b byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ack = b
}

// SetFrameLen overrides the generated frame length; it must match the
// frame length of whatever mode/depth the camera under test uses.
func (d *EmulatorDevice) SetFrameLen(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frameLen = n
}

// SetPace makes every bulk chunk take at least p, to simulate readout
// time.
func (d *EmulatorDevice) SetPace(p time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pace = p
}

// TruncateNextFrame makes the next regular frame short, as a
// mid-stream device fault.
func (d *EmulatorDevice) TruncateNextFrame() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.truncNext = true
}

// FailRequest makes control transfers with the given request code fail
// with err; nil clears the fault.
func (d *EmulatorDevice) FailRequest(req uint8, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failReq, req)
		return
	}
	d.failReq[req] = err
}

// FailBulk makes bulk reads fail with err; nil clears the fault.
func (d *EmulatorDevice) FailBulk(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failBlk = err
}
