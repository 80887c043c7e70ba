package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/alepar/airthings/airthings"
)

// pipePrinter writes one list per line, e.g. ['40.0 %rH', '10 Bq/m3'].
type pipePrinter struct {
	w io.Writer
}

func (p *pipePrinter) Preamble(serialNumber uint64) error {
	_, err := fmt.Fprintf(p.w, "Device serial number: %d\n", serialNumber)
	return err
}

func (p *pipePrinter) Header(labels []string) error {
	return p.list(labels)
}

func (p *pipePrinter) Row(readings []airthings.SensorReading) error {
	return p.list(cells(readings))
}

func (p *pipePrinter) Close() error {
	return nil
}

func (p *pipePrinter) list(items []string) error {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	_, err := fmt.Fprintf(p.w, "[%s]\n", strings.Join(quoted, ", "))
	return err
}
