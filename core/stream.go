package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toupcam/toupcam-go/tracelog"
)

// Streaming pipeline: a producer goroutine takes exclusive ownership
// of the Camera, loops on ReadFrame and hands frames to a consumer
// over a bounded channel. The consumer polls non-blockingly once per
// iteration of its own loop, so render cadence and arrival cadence
// stay decoupled.

// FrameQueueLen bounds the producer-to-consumer queue. On overflow the
// oldest queued frame is dropped: the consumer wants the freshest
// data, and blocking the producer would stall bulk reads.
const FrameQueueLen = 8

// StreamFrame pairs a captured frame with its capture timestamp.
type StreamFrame struct {
	Frame    *Frame
	Captured time.Time
}

// Stream runs the producer loop for one Camera. The camera belongs to
// the stream's goroutine from NewStream until Done is closed; nothing
// else may touch it in between. The producer starts streaming, reads
// frames until a stop request or a transport error, then stops
// streaming before exiting. Closing the camera stays the caller's job.
type Stream struct {
	cam *Camera
	log *tracelog.MemoryWriter

	frames chan StreamFrame
	stop   chan struct{}
	once   sync.Once

	done chan struct{}
	err  error // valid after done is closed

	dropped uint64 // atomic
}

// NewStream starts the producer goroutine.
func NewStream(cam *Camera, log *tracelog.MemoryWriter) *Stream {
	s := &Stream{
		cam:    cam,
		log:    log,
		frames: make(chan StreamFrame, FrameQueueLen),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Frames is the producer-to-consumer channel. It is closed when the
// producer exits; the consumer treats that as terminal.
func (s *Stream) Frames() <-chan StreamFrame { return s.frames }

// TryFrame is the consumer-side non-blocking poll. ok is false when no
// frame is pending (or the stream has ended).
func (s *Stream) TryFrame() (f StreamFrame, ok bool) {
	select {
	case f, ok = <-s.frames:
		return f, ok
	default:
		return StreamFrame{}, false
	}
}

// Stop requests producer shutdown. It is delivered at most once, safe
// to call repeatedly, and inert after the producer has exited. The
// producer notices it between reads, so shutdown is bounded by one
// in-flight bulk read plus the stop sequence.
func (s *Stream) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Done is closed once the producer has exited and the camera is idle
// again.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Dropped reports how many frames were discarded because the consumer
// fell behind.
func (s *Stream) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Err reports how the producer ended: nil after a clean stop, the
// terminal transport error otherwise. Valid once Done is closed.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Stream) run() {
	var err error
	defer func() {
		// Teardown runs on every exit path: normal stop, transport
		// error, even a start failure.
		if stopErr := s.cam.StopStream(); stopErr != nil {
			s.log.Logf("stream - stop: %v", stopErr)
			if err == nil {
				err = stopErr
			}
		}
		s.err = err
		close(s.frames)
		close(s.done)
		s.log.Log("stream - producer finished")
	}()

	if err = s.cam.StartStream(); err != nil {
		return
	}

	for {
		// Poll the stop channel between reads; an in-flight bulk read
		// can hold us up for at most one timeout interval.
		select {
		case <-s.stop:
			return
		default:
		}

		frame, rerr := s.cam.ReadFrame()
		if rerr != nil {
			if errors.Is(rerr, ErrFirstFrame) {
				// Expected exactly once right after start; discard.
				continue
			}
			err = rerr
			return
		}

		s.forward(StreamFrame{Frame: frame, Captured: time.Now()})
	}
}

// forward enqueues one frame, dropping the oldest queued frame when
// the consumer has fallen FrameQueueLen behind.
func (s *Stream) forward(f StreamFrame) {
	select {
	case s.frames <- f:
		return
	default:
	}
	select {
	case old := <-s.frames:
		atomic.AddUint64(&s.dropped, 1)
		s.log.Logf("stream - queue full, dropped frame captured %s", old.Captured.Format("15:04:05.000"))
	default:
	}
	select {
	case s.frames <- f:
	default:
	}
}
