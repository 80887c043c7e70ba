package waveplus

import (
	"context"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/airthings/airthings"
)

// BleTransport talks to the controller through a raw HCI socket.
type BleTransport struct {
	device ble.Device
}

// OpenBleTransport opens HCI device hci<deviceID>, or the first available one
// when deviceID is negative.
func OpenBleTransport(deviceID int) (*BleTransport, error) {
	var opts []ble.Option
	if deviceID >= 0 {
		opts = append(opts, ble.OptDeviceID(deviceID))
	}
	d, err := linux.NewDevice(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ble")
	}
	return &BleTransport{device: d}, nil
}

func (t *BleTransport) Close() error {
	return t.device.Stop()
}

func (t *BleTransport) Scan(ctx context.Context, window time.Duration) ([]airthings.Advertisement, error) {
	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	results := &scanResults{}
	defer results.finish()

	err := t.device.Scan(scanCtx, false, func(a ble.Advertisement) {
		if !wavePlusOnlyFilter(a) {
			return
		}
		results.add(airthings.Advertisement{
			Address:          a.Addr().String(),
			ManufacturerData: append([]byte(nil), a.ManufacturerData()...),
			RSSI:             a.RSSI(),
		})
	})
	if err != nil {
		switch errors.Cause(err) {
		case context.DeadlineExceeded:
			if ctx.Err() != nil {
				return nil, errors.Wrap(err, "scan for devices cancelled")
			}
		case context.Canceled:
			return nil, errors.Wrap(err, "scan for devices cancelled")
		default:
			return nil, errors.Wrap(err, "failed to scan for devices")
		}
	}

	// go-ble runs every handler in its own goroutine and keeps the handler
	// installed after the scan stops, so late calls must not touch ads.
	ads := results.finish()
	log.Debugf("scan window of %s saw %d candidate devices", window, len(ads))
	return ads, nil
}

func wavePlusOnlyFilter(a ble.Advertisement) bool {
	if a.Connectable() {
		_, ok := airthings.SerialNumberFromManufacturerData(a.ManufacturerData())
		return ok
	}

	return false
}
