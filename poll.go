package main

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/airthings/airthings"
	"github.com/alepar/airthings/airthings/metrics"
	"github.com/alepar/airthings/airthings/output"
)

type session interface {
	Connect(ctx context.Context) error
	Read() ([]byte, error)
	Disconnect()
}

type poller struct {
	session     session
	printer     output.Printer
	serialNr    uint64
	period      time.Duration
	headerEvery int

	// optional
	exporter    *metrics.Exporter
	metricsFile string

	rows int
}

// Run polls until ctx is cancelled or a fatal error occurs. The session is
// disconnected exactly once on the way out, whatever the exit path.
func (p *poller) Run(ctx context.Context) (err error) {
	defer p.session.Disconnect()
	defer func() {
		if cerr := p.printer.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to write output")
		}
	}()

	labels := airthings.Labels(airthings.DefaultVersion)
	if err := p.printer.Preamble(p.serialNr); err != nil {
		return errors.Wrap(err, "failed to write output")
	}
	if err := p.printer.Header(labels); err != nil {
		return errors.Wrap(err, "failed to write output")
	}

	for {
		readings, err := p.poll(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && airthings.IsFatal(err):
			return err
		case err != nil:
			var notFound *airthings.DeviceNotFoundError
			if errors.As(err, &notFound) {
				log.WithError(err).Warn("verify the serial number and that the device is advertising, retrying next cycle")
			} else {
				log.WithError(err).Warn("failed to read from sensor, retrying next cycle")
			}
		default:
			if p.headerEvery > 0 && p.rows > 0 && p.rows%p.headerEvery == 0 {
				if err := p.printer.Close(); err != nil {
					return errors.Wrap(err, "failed to write output")
				}
				if err := p.printer.Header(labels); err != nil {
					return errors.Wrap(err, "failed to write output")
				}
			}
			if err := p.printer.Row(readings); err != nil {
				return errors.Wrap(err, "failed to write output")
			}
			p.rows++
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.period):
		}
	}
}

// poll runs one connect, read, decode, disconnect cycle.
func (p *poller) poll(ctx context.Context) (readings []airthings.SensorReading, err error) {
	serialNr := strconv.FormatUint(p.serialNr, 10)
	defer func() {
		// an interrupted cycle says nothing about the sensor
		if ctx.Err() == nil {
			p.observe(serialNr, readings, err)
		}
	}()

	if err := p.session.Connect(ctx); err != nil {
		return nil, err
	}
	defer p.session.Disconnect()

	raw, err := p.session.Read()
	if err != nil {
		return nil, err
	}

	readings, err = airthings.Decode(raw)
	if err != nil {
		return nil, err
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		fields := log.Fields{}
		for _, r := range readings {
			fields[r.Key] = r.Value
		}
		log.WithFields(fields).Debugf("Received from serialNr %s", serialNr)
	}
	return readings, nil
}

func (p *poller) observe(serialNr string, readings []airthings.SensorReading, err error) {
	if p.exporter == nil {
		return
	}
	if err != nil {
		p.exporter.ObserveFailure(serialNr)
	} else {
		p.exporter.Observe(serialNr, readings)
	}
	if p.metricsFile == "" {
		return
	}
	if werr := p.exporter.WriteTextfile(p.metricsFile); werr != nil {
		log.WithError(werr).Warnf("failed to update %s", p.metricsFile)
	}
}
