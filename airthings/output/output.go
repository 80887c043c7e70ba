// Package output renders readings either as a boxed table for a terminal or
// as one list per line for redirection to a file.
package output

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/alepar/airthings/airthings"
)

type Mode string

const (
	Terminal Mode = "terminal"
	Pipe     Mode = "pipe"
)

// ParseMode is case insensitive. An empty string selects Terminal.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Terminal, nil
	case Terminal, Pipe:
		return m, nil
	default:
		return "", errors.Errorf("invalid mode %q (allowed: terminal, pipe)", s)
	}
}

type Printer interface {
	Preamble(serialNumber uint64) error
	Header(labels []string) error
	Row(readings []airthings.SensorReading) error
	Close() error
}

func New(mode Mode, w io.Writer) Printer {
	if mode == Pipe {
		return &pipePrinter{w: w}
	}
	return &tablePrinter{w: w, width: ColumnWidth}
}

func cells(readings []airthings.SensorReading) []string {
	out := make([]string, len(readings))
	for i, r := range readings {
		out[i] = r.String()
	}
	return out
}
