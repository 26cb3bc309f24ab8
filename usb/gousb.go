package usb

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/gousb"

	"github.com/toupcam/toupcam-go/core"
	"github.com/toupcam/toupcam-go/tracelog"
	"github.com/toupcam/toupcam-go/types"
)

// Hardware backend on the gousb libusb binding.

const (
	gousbPrefix   = "usb"
	usbConfigNum  = 1
	usbIfaceNum   = 0
	usbAltSetting = 0

	// endpoint number of the 0x81 IN streaming endpoint
	bulkEpNum = types.BulkEndpoint & 0x0f
)

type GoUSB struct {
	ctx *gousb.Context
	mw  *tracelog.MemoryWriter
}

func InitGoUSB(mw *tracelog.MemoryWriter) *GoUSB {
	mw.Log("usb - init")
	return &GoUSB{
		ctx: gousb.NewContext(),
		mw:  mw,
	}
}

// Close tears the libusb context down; should happen only on exit.
func (b *GoUSB) Close() {
	if err := b.ctx.Close(); err != nil {
		b.mw.Logf("usb - context close: %v", err)
	}
}

func (b *GoUSB) Has(path string) bool {
	return strings.HasPrefix(path, gousbPrefix)
}

func devicePath(desc *gousb.DeviceDesc) string {
	return fmt.Sprintf("%s%d:%d", gousbPrefix, desc.Bus, desc.Address)
}

func isCamera(desc *gousb.DeviceDesc) bool {
	return uint16(desc.Vendor) == types.VendorID && uint16(desc.Product) == types.ProductID
}

// Enumerate lists attached cameras. General-purpose enumeration is a
// non-goal; only the one known VID/PID is reported.
func (b *GoUSB) Enumerate() ([]core.Info, error) {
	var infos []core.Info
	_, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if isCamera(desc) {
			infos = append(infos, core.Info{
				Path:      devicePath(desc),
				VendorID:  int(desc.Vendor),
				ProductID: int(desc.Product),
			})
		}
		return false // inspect only, open nothing
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Connect opens the device at path and prepares it for driving:
// kernel driver detach, configuration 1, claim interface 0, resolve
// the bulk endpoint. Each step cleans up everything acquired before it
// on failure, so an error never leaves a partially-claimed device.
func (b *GoUSB) Connect(path string) (core.Device, error) {
	b.mw.Logf("usb - connecting %s", path)

	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isCamera(desc) && devicePath(desc) == path
	})
	if err != nil {
		if len(devs) == 0 {
			return nil, err
		}
		// device opened despite a fault elsewhere on the bus
		b.mw.Logf("usb - warning: enumeration: %v", err)
	}
	if len(devs) == 0 {
		return nil, core.ErrNotFound
	}
	dev := devs[0]
	for _, extra := range devs[1:] {
		// cannot happen with bus:address paths, but do not leak
		extra.Close()
	}

	// Let libusb detach a kernel-owned driver before the claim and
	// re-attach it after release.
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		return nil, err
	}

	cfg, err := dev.Config(usbConfigNum)
	if err != nil {
		dev.Close()
		return nil, err
	}

	intf, err := cfg.Interface(usbIfaceNum, usbAltSetting)
	if err != nil {
		cfg.Close()
		dev.Close()
		return nil, err
	}

	ep, err := intf.InEndpoint(bulkEpNum)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		return nil, err
	}

	b.mw.Log("usb - interface claimed")
	return &Device{
		dev:    dev,
		cfg:    cfg,
		intf:   intf,
		bulkIn: ep,
		mw:     b.mw,
	}, nil
}

// Device is one opened, claimed camera.
type Device struct {
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	bulkIn *gousb.InEndpoint

	closed int32 // atomic

	mw *tracelog.MemoryWriter
}

const (
	reqTypeVendorIn  = gousb.ControlIn | gousb.ControlVendor | gousb.ControlDevice
	reqTypeVendorOut = gousb.ControlOut | gousb.ControlVendor | gousb.ControlDevice
)

func (d *Device) ControlIn(req uint8, val, idx uint16, buf []byte, timeout time.Duration) (int, error) {
	if atomic.LoadInt32(&d.closed) == 1 {
		return 0, errClosedDevice
	}
	d.dev.ControlTimeout = timeout
	n, err := d.dev.Control(reqTypeVendorIn, req, val, idx, buf)
	d.mw.Logf("usb - ctrl in  req=%#02x val=%#04x idx=%#04x len=%d -> %d %v",
		req, val, idx, len(buf), n, err)
	return n, err
}

func (d *Device) ControlOut(req uint8, val, idx uint16, buf []byte, timeout time.Duration) (int, error) {
	if atomic.LoadInt32(&d.closed) == 1 {
		return 0, errClosedDevice
	}
	d.dev.ControlTimeout = timeout
	n, err := d.dev.Control(reqTypeVendorOut, req, val, idx, buf)
	d.mw.Logf("usb - ctrl out req=%#02x val=%#04x idx=%#04x len=%d -> %d %v",
		req, val, idx, len(buf), n, err)
	return n, err
}

// BulkIn reads one chunk from the streaming endpoint. The timeout is
// per call; an in-flight transfer is not cancellable earlier.
func (d *Device) BulkIn(buf []byte, timeout time.Duration) (int, error) {
	if atomic.LoadInt32(&d.closed) == 1 {
		return 0, errClosedDevice
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return d.bulkIn.ReadContext(ctx, buf)
}

// Close releases the claimed interface and resets the handle. All
// sub-steps run even if an earlier one fails; failures are logged and
// only the last one is reported, since the caller treats teardown as
// best-effort anyway.
func (d *Device) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil
	}
	d.mw.Log("usb - releasing interface")
	d.intf.Close()

	if err := d.cfg.Close(); err != nil {
		d.mw.Logf("usb - warning: config close: %v", err)
	}
	if err := d.dev.Reset(); err != nil {
		d.mw.Logf("usb - warning: device reset: %v", err)
	}
	err := d.dev.Close()
	if err != nil {
		d.mw.Logf("usb - warning: device close: %v", err)
	}
	d.mw.Log("usb - closed")
	return err
}
