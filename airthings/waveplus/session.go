package waveplus

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/airthings/airthings"
)

type State int

const (
	Unresolved State = iota
	Resolved
	Connected
	NotFound
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Connected:
		return "connected"
	case NotFound:
		return "not found"
	}
	return "unknown"
}

const (
	DefaultScanWindow = 100 * time.Millisecond
	DefaultMaxScans   = 50
)

type SessionConfig struct {
	SerialNumber uint64

	// single discovery scan duration
	ScanWindow time.Duration

	// discovery gives up after this many scan windows
	MaxScans int

	// bounds the GATT connect of a single cycle, zero means no timeout
	ConnectTimeout time.Duration
}

// Session tracks one Wave Plus across poll cycles. The address found by
// discovery is kept for the lifetime of the session so reconnects skip scanning.
type Session struct {
	transport airthings.Transport
	cfg       SessionConfig

	state   State
	address string
	conn    airthings.Conn
	char    airthings.Characteristic
}

func NewSession(transport airthings.Transport, cfg SessionConfig) *Session {
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = DefaultScanWindow
	}
	if cfg.MaxScans <= 0 {
		cfg.MaxScans = DefaultMaxScans
	}
	return &Session{
		transport: transport,
		cfg:       cfg,
	}
}

func (s *Session) State() State {
	return s.state
}

// Address returns the resolved BLE address, empty until discovery succeeds.
func (s *Session) Address() string {
	return s.address
}

func (s *Session) Connect(ctx context.Context) error {
	if s.address == "" {
		if err := s.discover(ctx); err != nil {
			return err
		}
	}

	if s.conn == nil {
		connCtx := ctx
		if s.cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			connCtx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
			defer cancel()
		}

		log.Debugf("connecting to %s", s.address)
		conn, err := s.transport.Connect(connCtx, s.address)
		if err != nil {
			return &airthings.TransportError{Op: "connect to " + s.address, Err: err}
		}
		s.conn = conn
	}

	if s.char == nil {
		char, err := s.conn.Characteristic(airthings.SensorServiceUUID, airthings.CurrentValuesCharUUID)
		if err != nil {
			s.Disconnect()
			return &airthings.TransportError{Op: "resolve current values characteristic", Err: err}
		}
		s.char = char
	}

	s.state = Connected
	return nil
}

func (s *Session) discover(ctx context.Context) error {
	log.WithField("serial_number", s.cfg.SerialNumber).Debugf("scanning for device")

	for i := 0; i < s.cfg.MaxScans; i++ {
		ads, err := s.transport.Scan(ctx, s.cfg.ScanWindow)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), "scan for devices cancelled")
			}
			return &airthings.TransportError{Op: "scan", Err: err}
		}

		for _, a := range ads {
			sn, ok := airthings.SerialNumberFromManufacturerData(a.ManufacturerData)
			if ok && uint64(sn) == s.cfg.SerialNumber {
				log.WithFields(log.Fields{
					"serial_number": sn,
					"addr":          a.Address,
					"rssi":          a.RSSI,
					"scans":         i + 1,
				}).Info("found device")
				s.address = a.Address
				s.state = Resolved
				return nil
			}
		}
	}

	s.state = NotFound
	return &airthings.DeviceNotFoundError{SerialNumber: s.cfg.SerialNumber, Scans: s.cfg.MaxScans}
}

func (s *Session) Read() ([]byte, error) {
	if s.state != Connected || s.char == nil {
		return nil, airthings.ErrNotConnected
	}

	log.Debugf("reading characteristic")
	raw, err := s.char.Read()
	if err != nil {
		return nil, &airthings.TransportError{Op: "read current values", Err: err}
	}
	return raw, nil
}

// Disconnect is safe to call in any state. Close failures are logged, not returned.
func (s *Session) Disconnect() {
	if s.conn != nil {
		log.Debugf("closing connection")
		if err := s.conn.Close(); err != nil {
			log.Warnf("failed to close connection to %s: %s", s.address, err)
		}
	}
	s.conn = nil
	s.char = nil

	if s.address != "" {
		s.state = Resolved
	}
}
