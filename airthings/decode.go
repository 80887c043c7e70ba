package airthings

import (
	"encoding/binary"
)

// RecordLength is the size of the current values characteristic.
const RecordLength = 20

// Version of the record layout emitted by current Wave Plus firmware.
const DefaultVersion uint8 = 1

const radonMax = 16383

type Conversion int

const (
	Identity Conversion = iota
	Scaled
	Radon
)

// FieldSpec locates one measurement inside a raw record.
type FieldSpec struct {
	Key        string
	Label      string
	Offset     int
	Width      int
	Conversion Conversion
	Divisor    float64
	Unit       string
}

// SensorSpecs maps a record version to its field layout.
//
// Version 1: u8 version, u8 humidity, u8 light, u8 waves, then little endian
// u16 radon ST, radon LT, temperature, pressure, CO2, VOC and two reserved words.
var SensorSpecs = map[uint8][]FieldSpec{
	1: {
		{Key: "humidity", Label: "Humidity", Offset: 1, Width: 1, Conversion: Scaled, Divisor: 2.0, Unit: "%rH"},
		{Key: "radon_short", Label: "Radon ST avg", Offset: 4, Width: 2, Conversion: Radon, Unit: "Bq/m3"},
		{Key: "radon_long", Label: "Radon LT avg", Offset: 6, Width: 2, Conversion: Radon, Unit: "Bq/m3"},
		{Key: "temperature", Label: "Temperature", Offset: 8, Width: 2, Conversion: Scaled, Divisor: 100.0, Unit: "°C"},
		{Key: "atm_pressure", Label: "Pressure", Offset: 10, Width: 2, Conversion: Scaled, Divisor: 50.0, Unit: "hPa"},
		{Key: "co2_level", Label: "CO2 level", Offset: 12, Width: 2, Conversion: Identity, Unit: "ppm"},
		{Key: "voc_level", Label: "VOC level", Offset: 14, Width: 2, Conversion: Identity, Unit: "ppb"},
	},
}

// Labels returns the column labels of a record version, nil if unknown.
func Labels(version uint8) []string {
	specs, ok := SensorSpecs[version]
	if !ok {
		return nil
	}
	labels := make([]string, len(specs))
	for i, spec := range specs {
		labels[i] = spec.Label
	}
	return labels
}

// Decode converts a raw current values record into readings.
func Decode(raw []byte) ([]SensorReading, error) {
	if len(raw) < RecordLength {
		return nil, &RecordLengthError{Length: len(raw)}
	}

	version := raw[0]
	specs, ok := SensorSpecs[version]
	if !ok {
		return nil, &UnsupportedVersionError{Version: version}
	}

	readings := make([]SensorReading, len(specs))
	for i, spec := range specs {
		readings[i] = SensorReading{
			Key:   spec.Key,
			Label: spec.Label,
			Value: spec.convert(spec.word(raw)),
			Unit:  spec.Unit,
		}
	}
	return readings, nil
}

func (spec FieldSpec) word(raw []byte) uint16 {
	if spec.Width == 1 {
		return uint16(raw[spec.Offset])
	}
	return binary.LittleEndian.Uint16(raw[spec.Offset:])
}

func (spec FieldSpec) convert(v uint16) Value {
	switch spec.Conversion {
	case Scaled:
		return Fractional(float64(v) / spec.Divisor)
	case Radon:
		if v > radonMax {
			return NotAvailable
		}
		return Integer(v)
	default:
		return Integer(v)
	}
}
