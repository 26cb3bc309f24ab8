package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/toupcam/toupcam-go/tracelog"
	"github.com/toupcam/toupcam-go/types"
)

// BitDepth is the sample width of raw sensor data.
type BitDepth int

const (
	Depth8  BitDepth = 8
	Depth12 BitDepth = 12
)

// BytesPerPixel of raw data at this depth; 12-bit samples are carried
// in two bytes.
func (d BitDepth) BytesPerPixel() int {
	if d == Depth12 {
		return 2
	}
	return 1
}

func (d BitDepth) String() string {
	if d == Depth12 {
		return "12-bit"
	}
	return "8-bit"
}

// CameraMode selects the sensor readout resolution.
type CameraMode int

const (
	Mode0 CameraMode = iota
	Mode1
	Mode2
)

// Dimensions returns the frame size of the mode.
func (m CameraMode) Dimensions() (width, height int) {
	switch m {
	case Mode0:
		return 4632, 3488
	case Mode2:
		return 1536, 1160
	default:
		return 2320, 1740
	}
}

func (m CameraMode) String() string {
	w, h := m.Dimensions()
	return fmt.Sprintf("mode%d (%dx%d)", int(m), w, h)
}

// DefaultControlTimeout bounds every vendor control transfer.
const DefaultControlTimeout = 5 * time.Second

const (
	defaultMode  = Mode1
	defaultDepth = Depth12
)

// Camera owns one opened device handle. The producer goroutine of a
// Stream (or a single caller) must be its only user, and the handle is
// released exactly once by Close. The sole exception are the
// Path/Mode/Depth/Streaming accessors, which are mutex-guarded so the
// status server can snapshot them from its own goroutines.
type Camera struct {
	dev  Device
	path string

	timeout time.Duration

	// mu guards the fields below against the status accessors; all
	// mutation still happens on the owner goroutine.
	mu        sync.Mutex
	streaming bool
	mode      CameraMode
	depth     BitDepth

	closed bool

	// firstDone flips after the first readout since stream start;
	// a truncated frame is benign only before that.
	firstDone bool

	// reading guards the single-read-in-flight contract.
	reading int32 // atomic

	log *tracelog.MemoryWriter
}

// Open enumerates the given bus and opens the first device matching
// the camera's fixed VID/PID. Kernel driver detach, configuration
// selection and the interface claim happen inside Bus.Connect, in that
// order, and a failure there leaves nothing claimed.
func Open(bus Bus, log *tracelog.MemoryWriter) (*Camera, error) {
	infos, err := bus.Enumerate()
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.VendorID != types.VendorID || info.ProductID != types.ProductID {
			continue
		}
		dev, err := bus.Connect(info.Path)
		if err != nil {
			return nil, err
		}
		log.Logf("camera - opened %s", info.Path)
		return &Camera{
			dev:     dev,
			path:    info.Path,
			timeout: DefaultControlTimeout,
			mode:    defaultMode,
			depth:   defaultDepth,
			log:     log,
		}, nil
	}
	return nil, ErrNotFound
}

// Path is the bus path the camera was opened at.
func (c *Camera) Path() string { return c.path }

func (c *Camera) Mode() CameraMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Camera) Depth() BitDepth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth
}

func (c *Camera) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// SetMode selects the readout resolution. Idle only.
func (c *Camera) SetMode(m CameraMode) error {
	if c.closed {
		return ErrClosed
	}
	if m == c.mode {
		return nil
	}
	if c.streaming {
		return ErrConfigLocked
	}
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
	return nil
}

// SetDepth selects the sample width. Idle only.
func (c *Camera) SetDepth(d BitDepth) error {
	if c.closed {
		return ErrClosed
	}
	if d == c.depth {
		return nil
	}
	if c.streaming {
		return ErrConfigLocked
	}
	c.mu.Lock()
	c.depth = d
	c.mu.Unlock()
	return nil
}

// StartStream configures the sensor and enables bulk readout. It is a
// no-op when already streaming. On any failure the device is left in
// an undefined intermediate state; the only recovery is Close and a
// fresh Open.
func (c *Camera) StartStream() error {
	if c.closed {
		return ErrClosed
	}
	if c.streaming {
		return nil
	}
	c.log.Log("camera - start stream")

	// Zero the session obfuscation key so register traffic is
	// plaintext.
	var hbuf [2]byte
	if err := c.venIn(types.ReqKeySet, 0x0000, 0x0000, hbuf[:]); err != nil {
		return err
	}

	if err := c.venOut(types.ReqStream, types.StreamEnableConfig, 0x000f, nil); err != nil {
		return err
	}

	for _, addr := range []uint16{0xffff, 0xffff, 0xfeff, 0xfeff} {
		if _, err := c.sysRead(addr); err != nil {
			return err
		}
	}

	if err := c.sensorInit(); err != nil {
		return err
	}

	// After this command frames are readable with bulk transfers on
	// the streaming endpoint.
	if err := c.venOut(types.ReqStream, types.StreamEnableBulk, 0x000f, nil); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)

	c.mu.Lock()
	c.streaming = true
	c.mu.Unlock()
	c.firstDone = false
	return nil
}

// StopStream halts readout and transitions to Idle. It is a no-op when
// Idle. The transition happens unconditionally - a failed stop
// sequence must not leave the camera impossible to close - but the
// first failure is still returned to the caller.
func (c *Camera) StopStream() error {
	if c.closed {
		return ErrClosed
	}
	if !c.streaming {
		return nil
	}
	c.log.Log("camera - stop stream")

	var firstErr error
	keep := func(err error) {
		if err != nil {
			c.log.Logf("camera - stop step: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	keep(c.sysWrite(0x0a00, 0x0000))
	keep(c.sensorWrite(0x1000, 0x0000))
	keep(c.venOut(types.ReqStream, types.StreamStop, 0x000f, nil))

	var wbuf [4]byte
	keep(c.venIn(types.ReqStopStatus, 0x0000, 0x0000, wbuf[:]))
	time.Sleep(10 * time.Millisecond)

	c.mu.Lock()
	c.streaming = false
	c.mu.Unlock()
	return firstErr
}

// Close stops streaming and releases the device handle. It runs every
// teardown sub-step regardless of earlier failures and never returns
// an error, only logs - teardown has to complete on every exit path.
func (c *Camera) Close() {
	if c.closed {
		return
	}
	if err := c.StopStream(); err != nil {
		c.log.Logf("camera - close: stop stream: %v", err)
	}
	if err := c.dev.Close(); err != nil {
		c.log.Logf("camera - close: release device: %v", err)
	}
	c.closed = true
	c.log.Log("camera - closed")
}
