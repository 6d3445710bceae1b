package logger

import (
	"sync"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// FileConfig describes the rolling log file. An empty Path disables it.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	// globalLogger holds the singleton logger instance.
	globalLogger *Logger
	once         sync.Once
)

// Get returns a singleton logger configured with the provided level.
// The first call initializes the logger; subsequent calls ignore the level
// and return the already initialized instance.
func Get(level string) *Logger {
	return Init(level, FileConfig{})
}

// Init is Get with an optional rolling file sink next to the console.
func Init(level string, file FileConfig) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level, file)
	})
	return globalLogger
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return newNopLogger()
}
