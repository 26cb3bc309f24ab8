package core_test

import (
	"errors"
	"testing"
	"time"

	"github.com/toupcam/toupcam-go/core"
	"github.com/toupcam/toupcam-go/usb"
)

// smallCamera configures the camera and emulator for the smallest
// frames, so streaming tests churn less memory.
func smallCamera(t *testing.T) (*core.Camera, *usb.EmulatorDevice) {
	t.Helper()
	cam, dev := newTestCamera(t)
	if err := cam.SetMode(core.Mode2); err != nil {
		t.Fatal(err)
	}
	if err := cam.SetDepth(core.Depth8); err != nil {
		t.Fatal(err)
	}
	dev.SetFrameLen(core.FrameLen(core.Mode2, core.Depth8))
	return cam, dev
}

func TestStreamEndToEnd(t *testing.T) {
	cam, _ := smallCamera(t)
	stream := core.NewStream(cam, testLog(t))

	want := core.FrameLen(core.Mode2, core.Depth8)
	for i := 0; i < 3; i++ {
		select {
		case f, ok := <-stream.Frames():
			if !ok {
				t.Fatalf("stream ended early: %v", stream.Err())
			}
			if len(f.Frame.Data) != want {
				t.Errorf("frame %d length = %d, want %d", i, len(f.Frame.Data), want)
			}
			if f.Captured.IsZero() {
				t.Errorf("frame %d has no capture time", i)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a frame")
		}
	}

	stream.Stop()
	<-stream.Done()
	if err := stream.Err(); err != nil {
		t.Errorf("stream ended with %v, want nil", err)
	}
	if cam.Streaming() {
		t.Error("camera still streaming after stream shutdown")
	}
	// the frames channel is closed once the producer exits
	for range stream.Frames() {
	}
}

func TestStreamStopLatency(t *testing.T) {
	cam, dev := smallCamera(t)
	dev.SetPace(5 * time.Millisecond)
	stream := core.NewStream(cam, testLog(t))

	select {
	case _, ok := <-stream.Frames():
		if !ok {
			t.Fatalf("stream ended early: %v", stream.Err())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the first frame")
	}

	began := time.Now()
	stream.Stop()
	stream.Stop() // repeat calls are inert

	// drain so the producer is never parked on a full queue
	go func() {
		for range stream.Frames() {
		}
	}()

	select {
	case <-stream.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not exit after Stop")
	}
	// bounded by one in-flight read plus the stop sequence
	if took := time.Since(began); took > 2*time.Second {
		t.Errorf("shutdown took %s", took)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("stream ended with %v, want nil", err)
	}
}

func TestStreamTransportErrorTerminates(t *testing.T) {
	cam, dev := smallCamera(t)
	stream := core.NewStream(cam, testLog(t))

	select {
	case _, ok := <-stream.Frames():
		if !ok {
			t.Fatalf("stream ended early: %v", stream.Err())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	dev.FailBulk(errors.New("device gone"))

	// producer terminates on its own; no Stop call
	for range stream.Frames() {
	}
	<-stream.Done()
	err := stream.Err()
	if err == nil {
		t.Fatal("stream terminated without an error")
	}
	var terr *core.TransportError
	if !errors.As(err, &terr) {
		t.Errorf("stream error = %v, want TransportError", err)
	}
	if cam.Streaming() {
		t.Error("camera still streaming after producer death")
	}
}

func TestStreamDropOldest(t *testing.T) {
	cam, _ := smallCamera(t)
	stream := core.NewStream(cam, testLog(t))

	// no consumer: the producer must keep running and shed frames
	deadline := time.After(10 * time.Second)
	for stream.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("no frames dropped with a stalled consumer")
		case <-time.After(10 * time.Millisecond):
		}
	}

	stream.Stop()
	queued := 0
	for range stream.Frames() {
		queued++
	}
	if queued > core.FrameQueueLen {
		t.Errorf("drained %d frames, queue bound is %d", queued, core.FrameQueueLen)
	}
	<-stream.Done()
	if err := stream.Err(); err != nil {
		t.Errorf("stream ended with %v, want nil", err)
	}
}

// The status server snapshots camera state from its own goroutines
// while the producer drives start and stop. Run with -race.
func TestStatusSnapshotDuringStream(t *testing.T) {
	cam, _ := smallCamera(t)
	stream := core.NewStream(cam, testLog(t))

	// poll until the producer has fully exited, so the reads overlap
	// both the start and the stop transition
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		for {
			select {
			case <-stream.Done():
				return
			default:
			}
			_ = cam.Streaming()
			_ = cam.Mode()
			_ = cam.Depth()
			_ = cam.Path()
		}
	}()

	select {
	case _, ok := <-stream.Frames():
		if !ok {
			t.Fatalf("stream ended early: %v", stream.Err())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}

	stream.Stop()
	for range stream.Frames() {
	}
	<-stream.Done()
	<-polled
	if err := stream.Err(); err != nil {
		t.Errorf("stream ended with %v, want nil", err)
	}
}

func TestStreamTryFrame(t *testing.T) {
	cam, _ := smallCamera(t)
	stream := core.NewStream(cam, testLog(t))

	var got bool
	deadline := time.After(5 * time.Second)
	for !got {
		select {
		case <-deadline:
			t.Fatal("TryFrame never returned a frame")
		default:
		}
		if f, ok := stream.TryFrame(); ok {
			if len(f.Frame.Data) != core.FrameLen(core.Mode2, core.Depth8) {
				t.Errorf("unexpected frame length %d", len(f.Frame.Data))
			}
			got = true
		} else {
			time.Sleep(time.Millisecond)
		}
	}

	stream.Stop()
	for range stream.Frames() {
	}
	<-stream.Done()
}
