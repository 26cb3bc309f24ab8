package types

// Wire-level constants for the camera's vendor control protocol,
// shared by the runtime driver (core, usb) and the offline capture
// decoder (usbcap).
//
// Everything here was recovered from USB captures of the vendor
// driver. The request names describe observed behavior only; the
// actual firmware semantics are unknown.

const (
	VendorID  = 0x0547
	ProductID = 0x3016
)

// Vendor control request codes.
const (
	ReqStream     = 0x01 // OUT; value selects the stream state
	ReqRead       = 0x0a // IN; status/address read, 2-byte LE reply
	ReqWrite      = 0x0b // IN; register write, 1-byte ack reply
	ReqKeySet     = 0x16 // IN; sets the session obfuscation key
	ReqStopStatus = 0x17 // IN; stream-stop status, 4-byte reply
	ReqEEPROM     = 0x20 // IN; EEPROM window read
)

// Value field arguments of ReqStream.
const (
	StreamStop         = 0x0000
	StreamEnableConfig = 0x0001
	StreamEnableBulk   = 0x0003
)

// WriteReady is the ack byte a ReqWrite transfer returns when the
// register write was accepted.
const WriteReady = 0x08

// WriteConfirmIndex is the index of the confirmation read issued after
// an accepted sensor-space write.
const WriteConfirmIndex = 0x1100

// Bulk data path. A completion shorter than the requested chunk marks
// the end of a frame; there is no other framing.
const (
	BulkEndpoint = 0x81
	BulkChunkLen = 0x40000
)

// EEPROM windows read through ReqEEPROM. The value field carries the
// window offset.
const (
	EEPROMOffset0 = 0x0000
	EEPROMLen0    = 0x1000
	EEPROMOffset1 = 0x1000
	EEPROMLen1    = 0x0cbb
)
