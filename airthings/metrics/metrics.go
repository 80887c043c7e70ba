// Package metrics keeps the latest readings as Prometheus gauges and writes
// them in the text exposition format for node_exporter's textfile collector.
package metrics

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/alepar/airthings/airthings"
)

var gaugeHelp = map[string]string{
	"humidity":     "Humidity (units: % of relative Humidity)",
	"radon_short":  "Radon Short Term estimate (units: Bq/m3)",
	"radon_long":   "Radon Long Term estimate (units: Bq/m3)",
	"temperature":  "Air Temperature (units: degrees Celsius)",
	"atm_pressure": "Atmospheric Pressure (units: hPa)",
	"co2_level":    "Air Carbon Dioxide level (units: ppm)",
	"voc_level":    "Air Volatile Organic Compounds level (units: ppb)",
}

type Exporter struct {
	registry *prometheus.Registry
	gauges   map[string]*prometheus.GaugeVec
	reads    *prometheus.CounterVec
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		gauges:   map[string]*prometheus.GaugeVec{},
		reads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "air_sensor_reads_total",
				Help: "Poll cycles by outcome",
			},
			[]string{"serial_number", "result"},
		),
	}
	e.registry.MustRegister(e.reads)

	for _, spec := range airthings.SensorSpecs[airthings.DefaultVersion] {
		help, ok := gaugeHelp[spec.Key]
		if !ok {
			help = spec.Label + " (units: " + spec.Unit + ")"
		}
		g := newGauge("air_"+spec.Key, help)
		e.registry.MustRegister(g)
		e.gauges[spec.Key] = g
	}
	return e
}

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"serial_number"},
	)
}

// Observe records a successful read. An N/A reading drops its series so a
// scraper sees a gap rather than a made up number.
func (e *Exporter) Observe(serialNr string, readings []airthings.SensorReading) {
	e.reads.WithLabelValues(serialNr, "success").Inc()
	for _, r := range readings {
		g, ok := e.gauges[r.Key]
		if !ok {
			continue
		}
		if v, ok := r.Value.Float(); ok {
			g.WithLabelValues(serialNr).Set(v)
		} else {
			g.DeleteLabelValues(serialNr)
		}
	}
}

// ObserveFailure records a failed cycle and drops the stale readings.
func (e *Exporter) ObserveFailure(serialNr string) {
	e.reads.WithLabelValues(serialNr, "failure").Inc()
	for _, g := range e.gauges {
		g.DeleteLabelValues(serialNr)
	}
}

func (e *Exporter) WriteText() ([]byte, error) {
	mfs, err := e.registry.Gather()
	if err != nil {
		return nil, errors.Wrap(err, "failed to gather metrics")
	}
	var buf bytes.Buffer
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, errors.Wrap(err, "failed to encode metrics")
		}
	}
	return buf.Bytes(), nil
}

// WriteTextfile replaces path atomically so the collector never reads a
// partially written file.
func (e *Exporter) WriteTextfile(path string) error {
	text, err := e.WriteText()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create metrics file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(text); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write metrics file")
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to chmod metrics file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close metrics file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "failed to replace metrics file")
}
