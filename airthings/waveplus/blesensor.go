package waveplus

import (
	"context"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/airthings/airthings"
)

const disconnectWait = 5 * time.Second

func (t *BleTransport) Connect(ctx context.Context, address string) (airthings.Conn, error) {
	cln, err := t.device.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, errors.Wrap(err, "couldn't connect to ble")
	}

	// Normally, the connection is disconnected by us after our exploration.
	// However, it can be asynchronously disconnected by the remote peripheral.
	// So we wait(detect) the disconnection in the go routine.
	done := make(chan struct{})
	go func() {
		<-cln.Disconnected()
		log.Debugf("device disconnected")
		close(done)
	}()

	return &bleConn{cln: cln, done: done}, nil
}

type bleConn struct {
	cln  ble.Client
	done chan struct{}
}

func (c *bleConn) Characteristic(service, characteristic string) (airthings.Characteristic, error) {
	serviceUuid, err := ble.Parse(service)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse service uuid")
	}
	log.Debugf("discovering services")
	services, err := c.cln.DiscoverServices([]ble.UUID{serviceUuid})
	log.Debugf("finished discovering services")
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover services")
	}
	if len(services) == 0 {
		return nil, errors.New("did not find expected sensor service")
	}

	charUuid, err := ble.Parse(characteristic)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse characteristic uuid")
	}
	log.Debugf("discovering characteristics")
	characteristics, err := c.cln.DiscoverCharacteristics([]ble.UUID{charUuid}, services[0])
	log.Debugf("finished discovering characteristics")
	if err != nil {
		return nil, errors.Wrap(err, "couldn't discover characteristic")
	}
	if len(characteristics) == 0 {
		return nil, errors.New("did not find expected characteristic")
	}

	return &bleCharacteristic{cln: c.cln, c: characteristics[0]}, nil
}

func (c *bleConn) Close() error {
	err := c.cln.CancelConnection()
	select {
	case <-c.done:
	case <-time.After(disconnectWait):
		return errors.New("timed out waiting for disconnect")
	}
	return errors.Wrap(err, "failed to cancel connection")
}

type bleCharacteristic struct {
	cln ble.Client
	c   *ble.Characteristic
}

func (c *bleCharacteristic) Read() ([]byte, error) {
	b, err := c.cln.ReadCharacteristic(c.c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read characteristic value")
	}
	return b, nil
}
