package waveplus

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alepar/airthings/airthings"
)

const testSerial = 1234567890

func advertisement(addr string, sn uint32) airthings.Advertisement {
	return airthings.Advertisement{
		Address:          addr,
		ManufacturerData: []byte{0x34, 0x03, byte(sn), byte(sn >> 8), byte(sn >> 16), byte(sn >> 24), 0x09, 0x00},
	}
}

type fakeTransport struct {
	// scans[i] is returned by the i-th Scan, later scans see nothing
	scans    [][]airthings.Advertisement
	scanErr  error
	connErr  error
	charErr  error
	closeErr error
	record   []byte
	readErr  error

	scanCalls    int
	connectCalls int
	charCalls    int
	closeCalls   int
	connected    []string
}

func (f *fakeTransport) Scan(ctx context.Context, window time.Duration) ([]airthings.Advertisement, error) {
	f.scanCalls++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if f.scanCalls <= len(f.scans) {
		return f.scans[f.scanCalls-1], nil
	}
	return nil, nil
}

func (f *fakeTransport) Connect(ctx context.Context, address string) (airthings.Conn, error) {
	f.connectCalls++
	if f.connErr != nil {
		return nil, f.connErr
	}
	f.connected = append(f.connected, address)
	return &fakeConn{f: f}, nil
}

type fakeConn struct {
	f *fakeTransport
}

func (c *fakeConn) Characteristic(service, characteristic string) (airthings.Characteristic, error) {
	c.f.charCalls++
	if c.f.charErr != nil {
		return nil, c.f.charErr
	}
	if service != airthings.SensorServiceUUID || characteristic != airthings.CurrentValuesCharUUID {
		return nil, errors.Errorf("unexpected characteristic %s/%s", service, characteristic)
	}
	return c, nil
}

func (c *fakeConn) Read() ([]byte, error) {
	return c.f.record, c.f.readErr
}

func (c *fakeConn) Close() error {
	c.f.closeCalls++
	return c.f.closeErr
}

func newTestSession(f *fakeTransport) *Session {
	return NewSession(f, SessionConfig{SerialNumber: testSerial, ScanWindow: time.Millisecond})
}

func TestSession_ConnectDiscoversAndReads(t *testing.T) {
	f := &fakeTransport{
		scans: [][]airthings.Advertisement{
			{advertisement("aa:aa:aa:aa:aa:aa", 42)},
			{},
			{advertisement("bb:bb:bb:bb:bb:bb", 7), advertisement("cc:cc:cc:cc:cc:cc", testSerial)},
			{advertisement("dd:dd:dd:dd:dd:dd", testSerial)},
		},
		record: []byte{1, 2, 3},
	}
	s := newTestSession(f)
	require.Equal(t, Unresolved, s.State())

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, "cc:cc:cc:cc:cc:cc", s.Address())
	assert.Equal(t, 3, f.scanCalls, "scanning stops at the first match")

	raw, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)
}

func TestSession_ConnectIsIdempotent(t *testing.T) {
	f := &fakeTransport{scans: [][]airthings.Advertisement{{advertisement("cc", testSerial)}}}
	s := newTestSession(f)

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Connect(context.Background()))

	assert.Equal(t, 1, f.scanCalls)
	assert.Equal(t, 1, f.connectCalls)
	assert.Equal(t, 1, f.charCalls)
}

func TestSession_ReconnectSkipsDiscovery(t *testing.T) {
	f := &fakeTransport{scans: [][]airthings.Advertisement{{advertisement("cc", testSerial)}}}
	s := newTestSession(f)

	require.NoError(t, s.Connect(context.Background()))
	s.Disconnect()
	require.NoError(t, s.Connect(context.Background()))

	assert.Equal(t, 1, f.scanCalls)
	assert.Equal(t, []string{"cc", "cc"}, f.connected)
}

func TestSession_DeviceNotFound(t *testing.T) {
	f := &fakeTransport{scans: [][]airthings.Advertisement{{advertisement("aa", 42)}}}
	s := newTestSession(f)

	err := s.Connect(context.Background())

	var notFound *airthings.DeviceNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, uint64(testSerial), notFound.SerialNumber)
	assert.Equal(t, DefaultMaxScans, notFound.Scans)
	assert.Equal(t, DefaultMaxScans, f.scanCalls)
	assert.Equal(t, 0, f.connectCalls)
	assert.Equal(t, NotFound, s.State())
	assert.Empty(t, s.Address())
}

func TestSession_ConnectAfterNotFoundRescans(t *testing.T) {
	f := &fakeTransport{}
	s := NewSession(f, SessionConfig{SerialNumber: testSerial, ScanWindow: time.Millisecond, MaxScans: 3})

	require.Error(t, s.Connect(context.Background()))
	assert.Equal(t, 3, f.scanCalls)

	f.scans = append(make([][]airthings.Advertisement, 3), []airthings.Advertisement{advertisement("cc", testSerial)})
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 4, f.scanCalls)
	assert.Equal(t, Connected, s.State())
}

func TestSession_ScanError(t *testing.T) {
	f := &fakeTransport{scanErr: errors.New("hci: no such device")}
	s := newTestSession(f)

	err := s.Connect(context.Background())

	var transportErr *airthings.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "scan", transportErr.Op)
	assert.Equal(t, 1, f.scanCalls)
	assert.False(t, airthings.IsFatal(err))
}

func TestSession_ScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeTransport{scanErr: context.Canceled}
	s := newTestSession(f)

	err := s.Connect(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSession_ConnectError(t *testing.T) {
	f := &fakeTransport{
		scans:   [][]airthings.Advertisement{{advertisement("cc", testSerial)}},
		connErr: errors.New("connection refused"),
	}
	s := newTestSession(f)

	err := s.Connect(context.Background())

	var transportErr *airthings.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, Resolved, s.State())
	assert.Equal(t, "cc", s.Address())
}

func TestSession_CharacteristicErrorClosesConnection(t *testing.T) {
	f := &fakeTransport{
		scans:   [][]airthings.Advertisement{{advertisement("cc", testSerial)}},
		charErr: errors.New("service not found"),
	}
	s := newTestSession(f)

	require.Error(t, s.Connect(context.Background()))
	assert.Equal(t, 1, f.closeCalls)
	assert.Equal(t, Resolved, s.State())

	_, err := s.Read()
	assert.Equal(t, airthings.ErrNotConnected, err)
}

func TestSession_ReadRequiresConnection(t *testing.T) {
	s := newTestSession(&fakeTransport{})

	_, err := s.Read()
	assert.Equal(t, airthings.ErrNotConnected, err)
}

func TestSession_ReadError(t *testing.T) {
	f := &fakeTransport{
		scans:   [][]airthings.Advertisement{{advertisement("cc", testSerial)}},
		readErr: errors.New("att: timeout"),
	}
	s := newTestSession(f)
	require.NoError(t, s.Connect(context.Background()))

	_, err := s.Read()
	var transportErr *airthings.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "read current values", transportErr.Op)
}

func TestSession_DisconnectTwice(t *testing.T) {
	f := &fakeTransport{
		scans:    [][]airthings.Advertisement{{advertisement("cc", testSerial)}},
		closeErr: errors.New("already closed"),
	}
	s := newTestSession(f)
	require.NoError(t, s.Connect(context.Background()))

	s.Disconnect()
	s.Disconnect()

	assert.Equal(t, 1, f.closeCalls)
	assert.Equal(t, Resolved, s.State())
	assert.Equal(t, "cc", s.Address())

	_, err := s.Read()
	assert.Equal(t, airthings.ErrNotConnected, err)
}

func TestSession_DisconnectBeforeConnect(t *testing.T) {
	s := newTestSession(&fakeTransport{})

	s.Disconnect()
	assert.Equal(t, Unresolved, s.State())
}
