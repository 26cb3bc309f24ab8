package usbcap

// Offline decoder for usbmon captures of the camera's control traffic,
// used for protocol analysis. It is independent of the runtime driver
// and shares only the request-code table in the types package.
//
// The vendor driver obfuscates register traffic: request 0x16 installs
// a session key (the transfer's value field rotated right four bits)
// that is XORed into the value and index fields of subsequent 0x0a and
// 0x0b transfers, and the stream-stop status read clears it. Each
// capture stream carries its own key, so the key is explicit Decoder
// state rather than anything global.

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gopacket/gopacket/pcapgo"

	"github.com/toupcam/toupcam-go/types"
)

// usbmon binary record layout (64-byte header, possibly followed by
// payload).
const (
	offEventType    = 0x08
	offTransferType = 0x09
	offEndpoint     = 0x0a
	offSetup        = 0x28 // 8-byte SETUP packet of a control transfer
	headerLen       = 0x30 // minimum we need to see
)

const (
	transferCtrl  = 0x02
	eventComplete = 0x43 // 'C'; submissions are 'S'
)

// Record is one submitted control transfer with obfuscation removed.
type Record struct {
	Endpoint    byte
	RequestType byte
	Request     byte
	Value       uint16
	Index       uint16
	Length      uint16
}

func (r Record) String() string {
	return fmt.Sprintf("ep=%#02x rt=%#02x req=%#02x val=%#04x idx=%#04x len=%#04x",
		r.Endpoint, r.RequestType, r.Request, r.Value, r.Index, r.Length)
}

// Decoder carries the per-stream de-obfuscation key.
type Decoder struct {
	key    uint16
	keySet bool
}

// Key returns the current session key and whether one is installed.
func (d *Decoder) Key() (uint16, bool) { return d.key, d.keySet }

// Decode feeds one captured usbmon record. ok is false for records
// that are not control-transfer submissions.
func (d *Decoder) Decode(data []byte) (Record, bool) {
	if len(data) < headerLen {
		return Record{}, false
	}
	if data[offTransferType] != transferCtrl {
		return Record{}, false
	}
	if data[offEventType] == eventComplete {
		return Record{}, false
	}

	r := Record{
		Endpoint:    data[offEndpoint],
		RequestType: data[offSetup],
		Request:     data[offSetup+1],
		Value:       binary.LittleEndian.Uint16(data[offSetup+2 : offSetup+4]),
		Index:       binary.LittleEndian.Uint16(data[offSetup+4 : offSetup+6]),
		Length:      binary.LittleEndian.Uint16(data[offSetup+6 : offSetup+8]),
	}

	switch r.Request {
	case types.ReqStopStatus:
		d.key, d.keySet = 0, false
	case types.ReqKeySet:
		d.key = r.Value>>4 | r.Value<<12
		d.keySet = true
	case types.ReqRead, types.ReqWrite:
		if d.keySet {
			r.Value ^= d.key
			r.Index ^= d.key
		}
	}
	return r, true
}

// DecodeFile reads a pcap capture of the usbmon interface and writes
// one line per decoded control submission to w.
func DecodeFile(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pr, err := pcapgo.NewReader(f)
	if err != nil {
		return err
	}

	var d Decoder
	for {
		data, _, err := pr.ReadPacketData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rec, ok := d.Decode(data)
		if !ok {
			continue
		}
		if rec.Request == types.ReqKeySet {
			key, _ := d.Key()
			fmt.Fprintf(w, "[!] set key to %#04x\n", key)
		}
		fmt.Fprintln(w, rec)
	}
}
