package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/airthings/airthings"
	"github.com/alepar/airthings/airthings/metrics"
	"github.com/alepar/airthings/airthings/output"
	"github.com/alepar/airthings/airthings/waveplus"
)

type transport interface {
	airthings.Transport
	Close() error
}

func init() {
	//logging, stdout is reserved for readings
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
	log.SetOutput(os.Stderr)
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			printUsage(os.Stdout, newFlagSet(&Config{}, new(string)))
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		printUsage(os.Stderr, nil)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go releaseSignals(ctx, stop)
	err = run(ctx, cfg, os.Stdout)
	stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("%s", err)
		printGuide(os.Stderr, err)
		os.Exit(1)
	}
}

// releaseSignals restores default signal handling after the first signal, so
// a second Ctrl+C kills a process stuck in a read that ignores ctx.
func releaseSignals(ctx context.Context, stop context.CancelFunc) {
	<-ctx.Done()
	stop()
}

func run(ctx context.Context, cfg Config, stdout io.Writer) error {
	t, err := openTransport(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := t.Close(); err != nil {
			log.Warnf("failed to close ble: %s", err)
		}
	}()

	p := &poller{
		session: waveplus.NewSession(t, waveplus.SessionConfig{
			SerialNumber:   cfg.SerialNumber,
			ScanWindow:     cfg.ScanWindow,
			MaxScans:       cfg.ScanRetries,
			ConnectTimeout: cfg.ConnectTimeout,
		}),
		printer:     output.New(cfg.Mode, stdout),
		serialNr:    cfg.SerialNumber,
		period:      cfg.SamplePeriod,
		headerEvery: cfg.HeaderEvery,
	}
	if cfg.MetricsFile != "" {
		p.exporter = metrics.NewExporter()
		p.metricsFile = cfg.MetricsFile
	}

	log.WithFields(log.Fields{
		"serial_number": cfg.SerialNumber,
		"backend":       cfg.Backend,
		"period":        cfg.SamplePeriod,
		"mode":          cfg.Mode,
	}).Info("polling Wave Plus")

	return p.Run(ctx)
}

func openTransport(cfg Config) (transport, error) {
	switch cfg.Backend {
	case backendBlueZ:
		adapterID := ""
		if cfg.Device >= 0 {
			adapterID = fmt.Sprintf("hci%d", cfg.Device)
		}
		return waveplus.OpenBlueZTransport(adapterID)
	default:
		return waveplus.OpenBleTransport(cfg.Device)
	}
}

func printGuide(w io.Writer, err error) {
	var versionErr *airthings.UnsupportedVersionError
	if errors.As(err, &versionErr) {
		fmt.Fprintln(w, "GUIDE: Contact Airthings for support.")
	}
}
