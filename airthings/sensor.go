package airthings

import (
	"encoding/json"
	"strconv"
)

// SensorReading is one decoded measurement from a single poll.
type SensorReading struct {
	Key   string
	Label string
	Value Value
	Unit  string
}

func (r SensorReading) String() string {
	return r.Value.String() + " " + r.Unit
}

// Value is either a number or NotAvailable.
type Value struct {
	number     float64
	available  bool
	fractional bool
}

// NotAvailable marks a measurement that is invalid or still warming up.
var NotAvailable = Value{}

func Integer(v uint16) Value {
	return Value{number: float64(v), available: true}
}

func Fractional(v float64) Value {
	return Value{number: v, available: true, fractional: true}
}

func (v Value) Available() bool {
	return v.available
}

// Float returns the numeric value; ok is false for NotAvailable.
func (v Value) Float() (f float64, ok bool) {
	return v.number, v.available
}

func (v Value) String() string {
	if !v.available {
		return "N/A"
	}
	if !v.fractional {
		return strconv.FormatFloat(v.number, 'f', 0, 64)
	}
	if v.number == float64(int64(v.number)) {
		return strconv.FormatFloat(v.number, 'f', 1, 64)
	}
	return strconv.FormatFloat(v.number, 'f', -1, 64)
}

// MarshalJSON encodes NotAvailable as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.available {
		return []byte("null"), nil
	}
	return json.Marshal(v.number)
}
