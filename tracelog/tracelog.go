package tracelog

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// In-memory rotating log for detailed protocol traces.
//
// The driver can emit a line per USB transfer, which is thousands of
// lines per second while streaming. Keeping them in a bounded ring,
// plus a preserved prefix from startup, makes the full trace cheap to
// carry in a long-running process and exportable on demand from the
// status server.

// Max line length is hardcoded to bound memory per line.
const maxLineLen = 500

type MemoryWriter struct {
	mu sync.Mutex

	start     [][]byte // first lines after creation, never rotated
	startMax  int
	ring      [][]byte // most recent lines
	ringMax   int
	ringNext  int // next slot to overwrite once the ring is full
	startTime time.Time
	stamp     bool

	// mirror receives every line as well; used to tee the trace to
	// stderr or a logfile in verbose mode. May be nil.
	mirror io.Writer
}

func New(ringSize, startSize int, stamp bool, mirror io.Writer) (*MemoryWriter, error) {
	if ringSize < 1 || startSize < 0 {
		return nil, errors.New("tracelog: invalid sizes")
	}
	return &MemoryWriter{
		startMax:  startSize,
		ringMax:   ringSize,
		startTime: time.Now(),
		stamp:     stamp,
		mirror:    mirror,
	}, nil
}

// Log stores one line.
func (m *MemoryWriter) Log(s string) {
	_, err := m.Write([]byte(s + "\n"))
	if err != nil {
		// give up, just print on stdout
		fmt.Println(err)
	}
}

func (m *MemoryWriter) Logf(format string, args ...interface{}) {
	m.Log(fmt.Sprintf(format, args...))
}

// Write implements io.Writer; every call is one log line.
func (m *MemoryWriter) Write(p []byte) (int, error) {
	if len(p) > maxLineLen {
		return 0, errors.New("tracelog: input too long")
	}

	line := make([]byte, len(p))
	copy(line, p)
	if m.stamp {
		now := time.Now()
		elapsed := now.Sub(m.startTime)
		line = []byte(fmt.Sprintf("[%.6f : %s] %s",
			elapsed.Seconds(), now.Format("15:04:05"), p))
	}

	m.mu.Lock()
	if len(m.start) < m.startMax {
		m.start = append(m.start, line)
	} else if len(m.ring) < m.ringMax {
		m.ring = append(m.ring, line)
	} else {
		m.ring[m.ringNext] = line
		m.ringNext = (m.ringNext + 1) % m.ringMax
	}
	m.mu.Unlock()

	if m.mirror != nil {
		if _, err := m.mirror.Write(line); err != nil {
			fmt.Println(err)
		}
	}
	return len(p), nil
}

// writeTo exports the trace, newest lines first, with the preserved
// startup lines at the bottom and extra text on top.
func (m *MemoryWriter) writeTo(header string, w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}

	for i := 0; i < len(m.ring); i++ {
		// walk backwards from the most recently written slot
		idx := (m.ringNext - 1 - i + 2*len(m.ring)) % len(m.ring)
		if _, err := w.Write(m.ring[idx]); err != nil {
			return err
		}
	}

	if _, err := w.Write([]byte("...\n")); err != nil {
		return err
	}

	for i := len(m.start) - 1; i >= 0; i-- {
		if _, err := w.Write(m.start[i]); err != nil {
			return err
		}
	}
	return nil
}

// String exports the trace as a string.
func (m *MemoryWriter) String(header string) (string, error) {
	var b bytes.Buffer
	if err := m.writeTo(header, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Gzip exports the trace as gzipped bytes, for the log download on the
// status page.
func (m *MemoryWriter) Gzip(header string) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	gw.Name = "trace.txt"
	if err := m.writeTo(header, gw); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
