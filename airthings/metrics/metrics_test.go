package metrics

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alepar/airthings/airthings"
)

func decode(t *testing.T, radonLong uint16) []airthings.SensorReading {
	raw := make([]byte, airthings.RecordLength)
	raw[0], raw[1] = 1, 80
	for i, w := range []uint16{10, radonLong, 2137, 50125, 612, 88} {
		binary.LittleEndian.PutUint16(raw[4+2*i:], w)
	}
	r, err := airthings.Decode(raw)
	require.NoError(t, err)
	return r
}

func TestExporter_Observe(t *testing.T) {
	e := NewExporter()
	e.Observe("1234567890", decode(t, 20))

	text, err := e.WriteText()
	require.NoError(t, err)
	out := string(text)

	assert.Contains(t, out, "# HELP air_humidity Humidity (units: % of relative Humidity)")
	assert.Contains(t, out, `air_humidity{serial_number="1234567890"} 40`)
	assert.Contains(t, out, `air_radon_long{serial_number="1234567890"} 20`)
	assert.Contains(t, out, `air_temperature{serial_number="1234567890"} 21.37`)
	assert.Contains(t, out, `air_atm_pressure{serial_number="1234567890"} 1002.5`)
	assert.Contains(t, out, `air_voc_level{serial_number="1234567890"} 88`)
	assert.Contains(t, out, `air_sensor_reads_total{result="success",serial_number="1234567890"} 1`)
}

func TestExporter_NotAvailableDropsSeries(t *testing.T) {
	e := NewExporter()
	e.Observe("1234567890", decode(t, 20))
	e.Observe("1234567890", decode(t, 0xFFFF))

	text, err := e.WriteText()
	require.NoError(t, err)

	assert.NotContains(t, string(text), `air_radon_long{`)
	assert.Contains(t, string(text), `air_radon_short{serial_number="1234567890"} 10`)
}

func TestExporter_ObserveFailure(t *testing.T) {
	e := NewExporter()
	e.Observe("1234567890", decode(t, 20))
	e.ObserveFailure("1234567890")

	text, err := e.WriteText()
	require.NoError(t, err)

	assert.NotContains(t, string(text), `air_humidity{`)
	assert.Contains(t, string(text), `air_sensor_reads_total{result="failure",serial_number="1234567890"} 1`)
}

func TestExporter_WriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waveplus.prom")
	e := NewExporter()
	e.Observe("1234567890", decode(t, 20))

	require.NoError(t, e.WriteTextfile(path))
	require.NoError(t, e.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `air_co2_level{serial_number="1234567890"} 612`)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
