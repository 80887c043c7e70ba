package waveplus

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/alepar/airthings/airthings"
)

// BlueZTransport goes through the BlueZ daemon over D-Bus instead of a raw
// HCI socket, so it does not need CAP_NET_ADMIN.
type BlueZTransport struct {
	adapter *bluetooth.Adapter

	mu        sync.Mutex
	addresses map[string]bluetooth.Address
}

func OpenBlueZTransport(adapterID string) (*BlueZTransport, error) {
	if adapterID == "" {
		adapterID = "hci0"
	}
	adapter := bluetooth.NewAdapter(adapterID)
	if err := adapter.Enable(); err != nil {
		return nil, errors.Wrapf(err, "ble enable (%s)", adapterID)
	}
	return &BlueZTransport{
		adapter:   adapter,
		addresses: map[string]bluetooth.Address{},
	}, nil
}

func (t *BlueZTransport) Close() error {
	return nil
}

// Scan blocks in adapter.Scan until the window elapses and StopScan unblocks it.
func (t *BlueZTransport) Scan(ctx context.Context, window time.Duration) ([]airthings.Advertisement, error) {
	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	// StopScan fails if it lands before Scan has started, so keep trying
	// until the scan returns.
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		<-scanCtx.Done()
		for t.adapter.StopScan() != nil {
			select {
			case <-stopped:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}()

	results := &scanResults{}
	defer results.finish()

	err := t.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		for _, md := range r.ManufacturerData() {
			if md.CompanyID != airthings.CompanyID {
				continue
			}
			address := r.Address.String()

			t.mu.Lock()
			t.addresses[address] = r.Address
			t.mu.Unlock()

			results.add(airthings.Advertisement{
				Address:          address,
				ManufacturerData: withCompanyID(md.CompanyID, md.Data),
				RSSI:             int(r.RSSI),
			})
			return
		}
	})
	if ctx.Err() != nil {
		return nil, errors.Wrap(ctx.Err(), "scan for devices cancelled")
	}
	if err != nil {
		return nil, errors.Wrap(err, "ble scan")
	}

	ads := results.finish()
	log.Debugf("scan window of %s saw %d candidate devices", window, len(ads))
	return ads, nil
}

// withCompanyID restores the identifier BlueZ splits off the manufacturer data.
func withCompanyID(companyID uint16, data []byte) []byte {
	b := make([]byte, 2, 2+len(data))
	binary.LittleEndian.PutUint16(b, companyID)
	return append(b, data...)
}

func (t *BlueZTransport) Connect(ctx context.Context, address string) (airthings.Conn, error) {
	t.mu.Lock()
	addr, ok := t.addresses[address]
	t.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("address %s was not seen by this adapter", address)
	}

	params := bluetooth.ConnectionParams{}
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}
	device, err := t.adapter.Connect(addr, params)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't connect to ble")
	}
	return &bluezConn{device: device}, nil
}

type bluezConn struct {
	device bluetooth.Device
}

func (c *bluezConn) Characteristic(service, characteristic string) (airthings.Characteristic, error) {
	serviceUuid, err := bluetooth.ParseUUID(service)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse service uuid")
	}
	charUuid, err := bluetooth.ParseUUID(characteristic)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse characteristic uuid")
	}

	services, err := c.device.DiscoverServices([]bluetooth.UUID{serviceUuid})
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover services")
	}
	if len(services) == 0 {
		return nil, errors.New("did not find expected sensor service")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{charUuid})
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover characteristic")
	}
	if len(chars) == 0 {
		return nil, errors.New("did not find expected characteristic")
	}
	return &bluezCharacteristic{c: chars[0]}, nil
}

func (c *bluezConn) Close() error {
	return errors.Wrap(c.device.Disconnect(), "failed to disconnect")
}

type bluezCharacteristic struct {
	c bluetooth.DeviceCharacteristic
}

func (c *bluezCharacteristic) Read() ([]byte, error) {
	buf := make([]byte, 64)
	n, err := c.c.Read(buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read characteristic value")
	}
	return buf[:n], nil
}
