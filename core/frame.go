package core

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/toupcam/toupcam-go/types"
)

// Frame is one raw Bayer readout. The buffer belongs to the receiver
// once returned; the driver never reuses it.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	// BytesPerPixel of the raw samples (1 for 8-bit, 2 for 12-bit).
	BytesPerPixel int
	// Elapsed is how long the bulk readout took, for diagnostics.
	Elapsed time.Duration
}

// FrameLen is the byte length of a full frame at the given mode and
// depth.
func FrameLen(m CameraMode, d BitDepth) int {
	w, h := m.Dimensions()
	return w * h * d.BytesPerPixel()
}

// bulkTimeout bounds a single bulk read; it also bounds how long a
// shutdown can stall behind an in-flight read.
const bulkTimeout = 500 * time.Millisecond

// ReadFrame assembles one frame from repeated bulk reads at the
// transport's maximum chunk size. The device marks end of frame with a
// short completion. The first readout after StartStream comes back
// truncated from the device; that case is ErrFirstFrame and the caller
// just reads again. One read in flight per handle.
func (c *Camera) ReadFrame() (*Frame, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if !c.streaming {
		return nil, ErrUnimplemented
	}
	if !atomic.CompareAndSwapInt32(&c.reading, 0, 1) {
		return nil, ErrReadInFlight
	}
	defer atomic.StoreInt32(&c.reading, 0)

	width, height := c.mode.Dimensions()
	bpp := c.depth.BytesPerPixel()
	frameLen := width * height * bpp

	data := make([]byte, frameLen)
	chunk := make([]byte, types.BulkChunkLen)
	cur := 0

	start := time.Now()
	for {
		n, err := c.dev.BulkIn(chunk, bulkTimeout)
		if err != nil {
			return nil, &TransportError{Kind: TransferBulk, Op: "frame readout", Err: err}
		}

		// Clamp to the frame buffer; overflow bytes are dropped.
		cp := n
		if rem := frameLen - cur; cp > rem {
			cp = rem
		}
		copy(data[cur:cur+cp], chunk[:cp])
		cur += cp

		// Fewer bytes received than requested means the device
		// finished reading out a frame.
		if n < len(chunk) {
			break
		}
	}
	elapsed := time.Since(start)

	first := !c.firstDone
	c.firstDone = true

	if cur < frameLen {
		if first {
			c.log.Logf("camera - first frame truncated at %d/%d bytes", cur, frameLen)
			return nil, ErrFirstFrame
		}
		return nil, &TransportError{
			Kind: TransferBulk,
			Op:   "frame readout",
			Err:  fmt.Errorf("short frame: %d of %d bytes", cur, frameLen),
		}
	}

	c.log.Logf("camera - frame %dx%d read in %s", width, height, elapsed)
	return &Frame{
		Data:          data,
		Width:         width,
		Height:        height,
		BytesPerPixel: bpp,
		Elapsed:       elapsed,
	}, nil
}
