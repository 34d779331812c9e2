package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

var std = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "aurora",
	Level:  log.InfoLevel,
})

// SetVerbose enables debug logging
func SetVerbose(verbose bool) {
	if verbose {
		std.SetLevel(log.DebugLevel)
		std.SetReportTimestamp(true)
	} else {
		std.SetLevel(log.InfoLevel)
		std.SetReportTimestamp(false)
	}
}

// SetOutput redirects log output, e.g. away from the terminal while the TUI owns it
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Verbose reports whether debug logging is on
func Verbose() bool {
	return std.GetLevel() <= log.DebugLevel
}

// With returns a logger carrying the given key/value pairs
func With(keyvals ...interface{}) *log.Logger {
	return std.With(keyvals...)
}

func LogDebug(msg string, keyvals ...interface{}) { std.Debug(msg, keyvals...) }
func LogInfo(msg string, keyvals ...interface{})  { std.Info(msg, keyvals...) }
func LogWarn(msg string, keyvals ...interface{})  { std.Warn(msg, keyvals...) }
func LogError(msg string, keyvals ...interface{}) { std.Error(msg, keyvals...) }
