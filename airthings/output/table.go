package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alepar/airthings/airthings"
)

// ColumnWidth is the padded width of every table cell.
const ColumnWidth = 12

type border struct {
	left, fill, sep, right string
}

var (
	topBorder    = border{"╭", "─", "┬", "╮"}
	midBorder    = border{"├", "─", "┼", "┤"}
	bottomBorder = border{"╰", "─", "┴", "╯"}
)

type tablePrinter struct {
	w       io.Writer
	width   int
	columns int
}

func (p *tablePrinter) Preamble(serialNumber uint64) error {
	_, err := fmt.Fprintf(p.w, "\nPress ctrl+C to exit program\n\nDevice serial number: %d\n", serialNumber)
	return err
}

func (p *tablePrinter) Header(labels []string) error {
	p.columns = len(labels)
	var b strings.Builder
	b.WriteString(p.line(topBorder))
	b.WriteString(p.row(labels))
	b.WriteString(p.line(midBorder))
	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *tablePrinter) Row(readings []airthings.SensorReading) error {
	p.columns = len(readings)
	_, err := io.WriteString(p.w, p.row(cells(readings)))
	return err
}

// Close draws the bottom border once a header has been drawn.
func (p *tablePrinter) Close() error {
	if p.columns == 0 {
		return nil
	}
	_, err := io.WriteString(p.w, p.line(bottomBorder))
	p.columns = 0
	return err
}

func (p *tablePrinter) line(b border) string {
	segments := make([]string, p.columns)
	for i := range segments {
		segments[i] = strings.Repeat(b.fill, p.width+2)
	}
	return b.left + strings.Join(segments, b.sep) + b.right + "\n"
}

func (p *tablePrinter) row(values []string) string {
	padded := make([]string, len(values))
	for i, v := range values {
		padded[i] = " " + p.pad(v) + " "
	}
	return "│" + strings.Join(padded, "│") + "│\n"
}

// pad right aligns s, cutting it with an ellipsis when it does not fit.
func (p *tablePrinter) pad(s string) string {
	n := utf8.RuneCountInString(s)
	if n > p.width {
		runes := []rune(s)
		return string(runes[:p.width-1]) + "…"
	}
	return strings.Repeat(" ", p.width-n) + s
}
