package airthings

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// CompanyID is the Bluetooth SIG identifier Airthings advertises with.
const CompanyID uint16 = 0x0334

// ParseSerialNumber is the entry point for payloads that arrive as hex text,
// e.g. from btmgmt or bluetoothctl dumps. The transports in this module hand
// over raw bytes and use SerialNumberFromManufacturerData directly.
// A missing payload, "none", or a payload from another vendor is unknown.
func ParseSerialNumber(manufacturerDataHex string) (uint32, bool) {
	s := strings.TrimSpace(manufacturerDataHex)
	if s == "" || strings.EqualFold(s, "none") {
		return 0, false
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return 0, false
	}
	return SerialNumberFromManufacturerData(data)
}

// SerialNumberFromManufacturerData reads the serial number that follows the
// little endian company identifier.
func SerialNumberFromManufacturerData(data []byte) (uint32, bool) {
	if len(data) < 6 {
		return 0, false
	}
	if binary.LittleEndian.Uint16(data[0:2]) != CompanyID {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[2:6]), true
}
