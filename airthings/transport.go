package airthings

import (
	"context"
	"time"
)

// Wave Plus GATT identifiers.
const (
	SensorServiceUUID     = "b42e1c08-ade7-11e4-89d3-123b93f75cba"
	CurrentValuesCharUUID = "b42e2a68-ade7-11e4-89d3-123b93f75cba"
)

// Advertisement is one peripheral seen during a scan window.
type Advertisement struct {
	Address          string
	ManufacturerData []byte
	RSSI             int
}

type Transport interface {

	// blocks for window and returns every advertisement seen meanwhile
	Scan(ctx context.Context, window time.Duration) ([]Advertisement, error)

	Connect(ctx context.Context, address string) (Conn, error)
}

type Conn interface {
	Characteristic(service, characteristic string) (Characteristic, error)
	Close() error
}

type Characteristic interface {
	Read() ([]byte, error)
}
