// Package logger provides a leveled logging utility for the ACWR migration
// subsystem. It wraps the standard `log` package and filters messages based
// on the configured global level.
package logger

import (
	"fmt"
	"log"
	"strings"
)

// LogLevel is a type representing the logging level.
type LogLevel int

const (
	// LevelDebug is used for detailed diagnostic output.
	LevelDebug LogLevel = iota
	// LevelInfo is used for general informational messages.
	LevelInfo
	// LevelWarn is used for potential issues that do not abort processing.
	LevelWarn
	// LevelError is used for error messages.
	LevelError
	// LevelFatal is used for fatal errors that terminate the process.
	LevelFatal
)

// logLevel is the currently set global log level. Only messages at or above
// this level are emitted.
var logLevel = LevelInfo

// SetLogLevel sets the global log level.
// Valid string values are "DEBUG", "INFO", "WARN", "ERROR", "FATAL"
// (case-insensitive). An unknown value falls back to INFO with a warning.
func SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = LevelDebug
	case "INFO":
		logLevel = LevelInfo
	case "WARN":
		logLevel = LevelWarn
	case "ERROR":
		logLevel = LevelError
	case "FATAL":
		logLevel = LevelFatal
	default:
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
		logLevel = LevelInfo
	}
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	if logLevel <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	if logLevel <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	if logLevel <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	if logLevel <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf formats and outputs a FATAL level log message, then terminates the
// program by calling os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
