// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log wires up the subsystem loggers used by the fee estimator and
// the parallel check queue. It does not parse flags or own a CLI; callers
// that want leveled, file-backed output call InitLogRotator and SetLogLevel
// themselves.
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/morcos/bitcoin/checkqueue"
	"github.com/morcos/bitcoin/feeestimator"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if LogRotator != nil {
		LogRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it will write to the backend. Loggers
// should not be used before InitLogRotator has been called for file-backed
// output; until then logWriter writes to standard output only.
var (
	// backendLog is the logging backend used to create all subsystem loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// LogRotator is the file-backed logging output. It should be closed on
	// application shutdown, if InitLogRotator was ever called.
	LogRotator *rotator.Rotator

	festLog = backendLog.Logger("FEST")
	chkqLog = backendLog.Logger("CHKQ")
)

// SubsystemLoggers maps each subsystem identifier to its associated logger.
var SubsystemLoggers = map[string]btclog.Logger{
	"FEST": festLog,
	"CHKQ": chkqLog,
}

func init() {
	feeestimator.UseLogger(festLog)
	checkqueue.UseLogger(chkqLog)
}

// InitLogRotator initializes the logging rotator to write logs to logFile
// and create roll files in the same directory. It must be called before any
// subsystem logger is used if file-backed output is desired.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %v", err)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %v", err)
	}

	LogRotator = r
	return nil
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored; an invalid log level sets the info level.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := SubsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystems. An invalid log level
// sets every subsystem to the info level.
func SetLogLevels(logLevel string) {
	for subsystemID := range SubsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}
