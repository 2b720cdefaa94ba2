// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it will write to the backend. When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
var (
	// backendLog is the logging backend used to create all subsystem loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	btpcLog = backendLog.Logger("BTPC")
	cnfgLog = backendLog.Logger("CNFG")
	dbacLog = backendLog.Logger("DBAC")
	mntrLog = backendLog.Logger("MNTR")
	radpLog = backendLog.Logger("RADP")
	schdLog = backendLog.Logger("SCHD")
	srvrLog = backendLog.Logger("SRVR")
	utilLog = backendLog.Logger("UTIL")
	xchgLog = backendLog.Logger("XCHG")
	xplrLog = backendLog.Logger("XPLR")
)

// SubsystemTags is an enum of all subsystem tags
var SubsystemTags = struct {
	BTPC,
	CNFG,
	DBAC,
	MNTR,
	RADP,
	SCHD,
	SRVR,
	UTIL,
	XCHG,
	XPLR string
}{
	BTPC: "BTPC",
	CNFG: "CNFG",
	DBAC: "DBAC",
	MNTR: "MNTR",
	RADP: "RADP",
	SCHD: "SCHD",
	SRVR: "SRVR",
	UTIL: "UTIL",
	XCHG: "XCHG",
	XPLR: "XPLR",
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	SubsystemTags.BTPC: btpcLog,
	SubsystemTags.CNFG: cnfgLog,
	SubsystemTags.DBAC: dbacLog,
	SubsystemTags.MNTR: mntrLog,
	SubsystemTags.RADP: radpLog,
	SubsystemTags.SCHD: schdLog,
	SubsystemTags.SRVR: srvrLog,
	SubsystemTags.UTIL: utilLog,
	SubsystemTags.XCHG: xchgLog,
	SubsystemTags.XPLR: xplrLog,
}

// Get returns the logger of a specific subsystem.
func Get(tag string) (logger btclog.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// InitLogRotator initializes the logging rotator to write logs to logFile and
// create roll files in the same directory. Logging output is written to
// standard output alone until it is called.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		return errors.Wrapf(err, "failed to create log directory %s", logDir)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return errors.Wrap(err, "failed to create file rotator")
	}
	logRotator = r
	return nil
}

// Close flushes and closes the log rotator. Loggers must not be used after
// Close has been called.
func Close() {
	if logRotator != nil {
		logRotator.Close()
	}
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level. The level string is validated first, so it can be used to
// sanity-check configuration.
func SetLogLevels(logLevel string) error {
	if _, ok := btclog.LevelFromString(logLevel); !ok {
		return errors.Errorf("invalid log level %s", logLevel)
	}
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
	return nil
}

// SupportedSubsystems returns a slice of the supported subsystems for logging
// purposes.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	return subsystems
}

// PrintErrorAndExit prints the given error to stderr and exits. It is meant
// for fatal errors that happen before logging is initialized.
func PrintErrorAndExit(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}
