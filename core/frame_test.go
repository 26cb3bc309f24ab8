package core_test

import (
	"errors"
	"testing"

	"github.com/toupcam/toupcam-go/core"
)

func TestReadFrame(t *testing.T) {
	cam, _ := newTestCamera(t)
	if err := cam.StartStream(); err != nil {
		t.Fatalf("StartStream: %v", err)
	}

	// the device truncates the first readout after init
	if _, err := cam.ReadFrame(); !errors.Is(err, core.ErrFirstFrame) {
		t.Fatalf("first ReadFrame = %v, want ErrFirstFrame", err)
	}

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if len(f.Data) != 8073600 {
			t.Errorf("frame %d length = %d, want 8073600", i, len(f.Data))
		}
		if f.Width != 2320 || f.Height != 1740 || f.BytesPerPixel != 2 {
			t.Errorf("frame %d geometry = %dx%d bpp %d", i, f.Width, f.Height, f.BytesPerPixel)
		}
		if f.Elapsed <= 0 {
			t.Errorf("frame %d has no elapsed time", i)
		}
	}
}

func TestReadFrameSmallMode(t *testing.T) {
	cam, dev := newTestCamera(t)
	if err := cam.SetMode(core.Mode2); err != nil {
		t.Fatal(err)
	}
	if err := cam.SetDepth(core.Depth8); err != nil {
		t.Fatal(err)
	}
	dev.SetFrameLen(core.FrameLen(core.Mode2, core.Depth8))

	if err := cam.StartStream(); err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if _, err := cam.ReadFrame(); !errors.Is(err, core.ErrFirstFrame) {
		t.Fatalf("first ReadFrame = %v, want ErrFirstFrame", err)
	}
	f, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if want := 1536 * 1160; len(f.Data) != want {
		t.Errorf("frame length = %d, want %d", len(f.Data), want)
	}
}

func TestReadFrameIdle(t *testing.T) {
	cam, _ := newTestCamera(t)
	if _, err := cam.ReadFrame(); !errors.Is(err, core.ErrUnimplemented) {
		t.Errorf("ReadFrame on idle camera = %v, want ErrUnimplemented", err)
	}
}

func TestMidStreamTruncationFatal(t *testing.T) {
	cam, dev := newTestCamera(t)
	if err := cam.StartStream(); err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if _, err := cam.ReadFrame(); !errors.Is(err, core.ErrFirstFrame) {
		t.Fatalf("first ReadFrame = %v, want ErrFirstFrame", err)
	}
	if _, err := cam.ReadFrame(); err != nil {
		t.Fatalf("full ReadFrame: %v", err)
	}

	// a short frame later in the stream is a device fault, not benign
	dev.TruncateNextFrame()
	_, err := cam.ReadFrame()
	if err == nil {
		t.Fatal("truncated mid-stream frame returned nil error")
	}
	if errors.Is(err, core.ErrFirstFrame) {
		t.Fatal("mid-stream truncation classified as first frame")
	}
	var terr *core.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("mid-stream truncation error = %v, want TransportError", err)
	}
	if terr.Kind != core.TransferBulk {
		t.Errorf("error kind = %v, want bulk", terr.Kind)
	}
}

func TestFirstFrameResetByRestart(t *testing.T) {
	cam, _ := newTestCamera(t)
	if err := cam.StartStream(); err != nil {
		t.Fatal(err)
	}
	if _, err := cam.ReadFrame(); !errors.Is(err, core.ErrFirstFrame) {
		t.Fatalf("first ReadFrame = %v, want ErrFirstFrame", err)
	}
	if _, err := cam.ReadFrame(); err != nil {
		t.Fatal(err)
	}

	if err := cam.StopStream(); err != nil {
		t.Fatal(err)
	}
	if err := cam.StartStream(); err != nil {
		t.Fatal(err)
	}
	// the post-init truncation happens again after every restart
	if _, err := cam.ReadFrame(); !errors.Is(err, core.ErrFirstFrame) {
		t.Errorf("first ReadFrame after restart = %v, want ErrFirstFrame", err)
	}
}
