package tracelog

import (
	"bytes"
	"compress/gzip"
	"io/ioutil"
	"strings"
	"testing"
)

func TestRotation(t *testing.T) {
	m, err := New(3, 2, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"l0", "l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8", "l9"} {
		m.Log(s)
	}

	got, err := m.String("HDR\n")
	if err != nil {
		t.Fatal(err)
	}
	// newest first, then the preserved startup lines at the bottom
	want := "HDR\nl9\nl8\nl7\n...\nl1\nl0\n"
	if got != want {
		t.Errorf("export = %q, want %q", got, want)
	}
}

func TestExportUnderfilled(t *testing.T) {
	m, err := New(5, 1, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Log("first")
	m.Log("second")
	m.Log("third")

	got, err := m.String("")
	if err != nil {
		t.Fatal(err)
	}
	want := "third\nsecond\n...\nfirst\n"
	if got != want {
		t.Errorf("export = %q, want %q", got, want)
	}
}

func TestLineTooLong(t *testing.T) {
	m, err := New(3, 0, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Write(make([]byte, maxLineLen+1)); err == nil {
		t.Error("overlong line accepted")
	}
}

func TestInvalidSizes(t *testing.T) {
	if _, err := New(0, 0, false, nil); err == nil {
		t.Error("ring size 0 accepted")
	}
	if _, err := New(1, -1, false, nil); err == nil {
		t.Error("negative start size accepted")
	}
}

func TestMirror(t *testing.T) {
	var mirror bytes.Buffer
	m, err := New(3, 0, false, &mirror)
	if err != nil {
		t.Fatal(err)
	}
	m.Log("hello")
	if mirror.String() != "hello\n" {
		t.Errorf("mirror = %q", mirror.String())
	}
}

func TestStamp(t *testing.T) {
	m, err := New(3, 0, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Log("stamped")
	got, err := m.String("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "] stamped\n") || !strings.HasPrefix(got, "[") {
		t.Errorf("stamped export = %q", got)
	}
}

func TestGzip(t *testing.T) {
	m, err := New(10, 0, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Log("compress me")

	data, err := m.Gzip("HDR\n")
	if err != nil {
		t.Fatal(err)
	}
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := ioutil.ReadAll(gr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(plain), "compress me\n") {
		t.Errorf("gzip round trip = %q", plain)
	}
}
