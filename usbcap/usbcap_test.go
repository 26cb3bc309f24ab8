package usbcap

import (
	"encoding/binary"
	"testing"

	"github.com/toupcam/toupcam-go/types"
)

// ctrlRecord builds a minimal usbmon control-transfer record.
func ctrlRecord(event byte, req uint8, val, idx, length uint16) []byte {
	data := make([]byte, 64)
	data[offEventType] = event
	data[offTransferType] = transferCtrl
	data[offEndpoint] = 0x80
	data[offSetup] = 0xc0 // vendor | device | IN
	data[offSetup+1] = req
	binary.LittleEndian.PutUint16(data[offSetup+2:], val)
	binary.LittleEndian.PutUint16(data[offSetup+4:], idx)
	binary.LittleEndian.PutUint16(data[offSetup+6:], length)
	return data
}

func TestDecodeSkips(t *testing.T) {
	var d Decoder

	if _, ok := d.Decode(make([]byte, headerLen-1)); ok {
		t.Error("truncated record decoded")
	}

	bulk := ctrlRecord('S', types.ReqRead, 0, 0, 2)
	bulk[offTransferType] = 0x03
	if _, ok := d.Decode(bulk); ok {
		t.Error("bulk record decoded")
	}

	if _, ok := d.Decode(ctrlRecord(eventComplete, types.ReqRead, 0, 0, 2)); ok {
		t.Error("completion record decoded")
	}
}

func TestDecodePlain(t *testing.T) {
	var d Decoder
	rec, ok := d.Decode(ctrlRecord('S', types.ReqRead, 0x0000, 0x1200, 2))
	if !ok {
		t.Fatal("submission not decoded")
	}
	if rec.Request != types.ReqRead || rec.Value != 0x0000 || rec.Index != 0x1200 || rec.Length != 2 {
		t.Errorf("decoded %s", rec)
	}
	if _, set := d.Key(); set {
		t.Error("key installed without a key-set transfer")
	}
}

func TestDecodeKeyLifecycle(t *testing.T) {
	var d Decoder

	// install a session key: value rotated right four bits
	if _, ok := d.Decode(ctrlRecord('S', types.ReqKeySet, 0x1234, 0, 0)); !ok {
		t.Fatal("key-set submission not decoded")
	}
	key, set := d.Key()
	if !set || key != 0x4123 {
		t.Fatalf("key = %#04x set=%v, want 0x4123", key, set)
	}

	// register traffic is XOR-obfuscated while the key is live
	rec, ok := d.Decode(ctrlRecord('S', types.ReqWrite, 0x0001^0x4123, 0x1008^0x4123, 1))
	if !ok {
		t.Fatal("write submission not decoded")
	}
	if rec.Value != 0x0001 || rec.Index != 0x1008 {
		t.Errorf("de-obfuscated %s, want val=0x0001 idx=0x1008", rec)
	}

	rec, ok = d.Decode(ctrlRecord('S', types.ReqRead, 0x0000^0x4123, 0xffff^0x4123, 2))
	if !ok {
		t.Fatal("read submission not decoded")
	}
	if rec.Value != 0x0000 || rec.Index != 0xffff {
		t.Errorf("de-obfuscated %s, want val=0x0000 idx=0xffff", rec)
	}

	// other requests pass through untouched
	rec, ok = d.Decode(ctrlRecord('S', types.ReqEEPROM, 0x1000, 0x0000, 0x0cbb))
	if !ok {
		t.Fatal("eeprom submission not decoded")
	}
	if rec.Value != 0x1000 {
		t.Errorf("eeprom value = %#04x, want 0x1000", rec.Value)
	}

	// the stream-stop status read clears the key
	if _, ok := d.Decode(ctrlRecord('S', types.ReqStopStatus, 0, 0, 4)); !ok {
		t.Fatal("stop-status submission not decoded")
	}
	if _, set := d.Key(); set {
		t.Error("key survives the stop-status read")
	}
	rec, ok = d.Decode(ctrlRecord('S', types.ReqWrite, 0x0a00, 0x0000, 1))
	if !ok {
		t.Fatal("write submission not decoded")
	}
	if rec.Value != 0x0a00 {
		t.Errorf("post-clear value = %#04x, want 0x0a00", rec.Value)
	}
}
