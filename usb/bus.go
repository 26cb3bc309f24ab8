package usb

import (
	"errors"

	"github.com/toupcam/toupcam-go/core"
)

// USB multiplexes the configured backends behind the core.Bus
// interface, so the daemon can run against real hardware, the
// emulator, or both.
type USB struct {
	buses []core.Bus
}

func Init(buses ...core.Bus) *USB {
	return &USB{
		buses: buses,
	}
}

func (b *USB) Has(path string) bool {
	for _, b := range b.buses {
		if b.Has(path) {
			return true
		}
	}
	return false
}

func (b *USB) Enumerate() ([]core.Info, error) {
	var infos []core.Info

	for _, b := range b.buses {
		l, err := b.Enumerate()
		if err != nil {
			return nil, err
		}
		infos = append(infos, l...)
	}
	return infos, nil
}

func (b *USB) Connect(path string) (core.Device, error) {
	for _, b := range b.buses {
		if b.Has(path) {
			return b.Connect(path)
		}
	}
	return nil, core.ErrNotFound
}

var errClosedDevice = errors.New("closed device")
