package airthings

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotConnected is returned when a read is attempted without an open session.
var ErrNotConnected = errors.New("device is not connected")

// DeviceNotFoundError is returned when discovery exhausts its scan budget.
type DeviceNotFoundError struct {
	SerialNumber uint64
	Scans        int
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("could not find device with serial number %d after %d scans", e.SerialNumber, e.Scans)
}

// UnsupportedVersionError is returned for a record whose layout is unknown.
type UnsupportedVersionError struct {
	Version uint8
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported sensor version %d", e.Version)
}

// TransportError wraps a failure reported by the BLE backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Cause() error  { return e.Err }
func (e *TransportError) Unwrap() error { return e.Err }

// RecordLengthError is returned for a payload that is too short to decode.
type RecordLengthError struct {
	Length int
}

func (e *RecordLengthError) Error() string {
	return fmt.Sprintf("sensor record is %d bytes, want at least %d", e.Length, RecordLength)
}

// IsFatal reports whether err leaves no point in polling the device again.
func IsFatal(err error) bool {
	var versionErr *UnsupportedVersionError
	if errors.As(err, &versionErr) {
		return true
	}
	return errors.Is(err, ErrNotConnected)
}
