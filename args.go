package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/airthings/airthings/output"
	"github.com/alepar/airthings/airthings/waveplus"
)

const (
	backendHCI   = "hci"
	backendBlueZ = "bluez"
)

type Config struct {
	SerialNumber uint64
	SamplePeriod time.Duration
	Mode         output.Mode

	Backend        string
	Device         int
	ScanWindow     time.Duration
	ScanRetries    int
	ConnectTimeout time.Duration
	HeaderEvery    int
	MetricsFile    string
	LogLevel       log.Level
}

// UsageError is a malformed command line.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "USAGE: read_waveplus [flags] SN SAMPLE-PERIOD [pipe > yourfile.txt]")
	fmt.Fprintln(w, "    where SN is the 10-digit serial number found under the magnetic backplate of your Wave Plus.")
	fmt.Fprintln(w, "    where SAMPLE-PERIOD is the time in seconds between reading the current values.")
	fmt.Fprintln(w, "    where [pipe > yourfile.txt] is optional and specifies that you want to pipe your results to yourfile.txt.")
	if fs != nil {
		fmt.Fprintln(w, "flags:")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
}

func newFlagSet(cfg *Config, levelName *string) *flag.FlagSet {
	fs := flag.NewFlagSet("read_waveplus", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Backend, "backend", backendHCI, "bluetooth backend: hci (raw HCI socket) or bluez (D-Bus)")
	fs.IntVar(&cfg.Device, "device", -1, "bluetooth adapter index, -1 picks the default")
	fs.DurationVar(&cfg.ScanWindow, "scan-window", waveplus.DefaultScanWindow, "duration of a single discovery scan")
	fs.IntVar(&cfg.ScanRetries, "scan-retries", waveplus.DefaultMaxScans, "discovery scans before giving up on the device")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", 10*time.Second, "timeout of a single connection attempt, 0 disables it")
	fs.IntVar(&cfg.HeaderEvery, "header-every", 0, "repeat the header every N rows, 0 prints it once")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "write the latest readings to this file in Prometheus text format")
	fs.StringVar(levelName, "log-level", "info", "log level: debug, info, warning, error")
	return fs
}

func parseArgs(args []string) (Config, error) {
	var cfg Config
	var levelName string
	fs := newFlagSet(&cfg, &levelName)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cfg, err
		}
		return cfg, &UsageError{Msg: err.Error()}
	}

	pos := fs.Args()
	if len(pos) < 2 {
		return cfg, usageErrorf("Missing input argument SN or SAMPLE-PERIOD.")
	}
	if len(pos) > 3 {
		return cfg, usageErrorf("Unexpected arguments %q.", pos[3:])
	}

	if !isDigits(pos[0]) || len(pos[0]) != 10 {
		return cfg, usageErrorf("Invalid SN format.")
	}
	sn, err := strconv.ParseUint(pos[0], 10, 64)
	if err != nil {
		return cfg, usageErrorf("Invalid SN format.")
	}
	cfg.SerialNumber = sn

	if !isDigits(pos[1]) {
		return cfg, usageErrorf("Invalid SAMPLE-PERIOD. Must be a non-negative number of seconds.")
	}
	period, err := strconv.ParseInt(pos[1], 10, 32)
	if err != nil {
		return cfg, usageErrorf("Invalid SAMPLE-PERIOD. Must be a non-negative number of seconds.")
	}
	cfg.SamplePeriod = time.Duration(period) * time.Second

	mode := ""
	if len(pos) > 2 {
		mode = pos[2]
	}
	if cfg.Mode, err = output.ParseMode(mode); err != nil {
		return cfg, usageErrorf("Invalid piping method.")
	}

	switch cfg.Backend {
	case backendHCI, backendBlueZ:
	default:
		return cfg, usageErrorf("Invalid backend %q (allowed: hci, bluez).", cfg.Backend)
	}
	if cfg.ScanWindow <= 0 {
		return cfg, usageErrorf("Invalid scan window %s. Must be positive.", cfg.ScanWindow)
	}
	if cfg.ScanRetries <= 0 {
		return cfg, usageErrorf("Invalid scan retries %d. Must be positive.", cfg.ScanRetries)
	}
	if cfg.ConnectTimeout < 0 {
		return cfg, usageErrorf("Invalid connect timeout %s.", cfg.ConnectTimeout)
	}
	if cfg.HeaderEvery < 0 {
		return cfg, usageErrorf("Invalid header-every %d.", cfg.HeaderEvery)
	}
	if cfg.LogLevel, err = log.ParseLevel(levelName); err != nil {
		return cfg, &UsageError{Msg: errors.Wrap(err, "invalid log level").Error()}
	}

	return cfg, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
