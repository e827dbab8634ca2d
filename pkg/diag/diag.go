// Package diag defines the diagnostic sink shared by the parsing,
// validation, and archive layers. Parsers report recoverable findings
// (format-version drift, rejected variant attempts) through an injected
// Logger instead of a package-level global, so library consumers decide
// where diagnostics go.
package diag

import (
	"log/slog"
	"os"
)

// Logger receives diagnostic events from the parsing and archive layers.
// The method set matches *log/slog.Logger so a slog logger can be passed
// directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var _ Logger = (*slog.Logger)(nil)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a Logger that discards every event. It is the default sink
// for all constructors accepting a logger option.
func Nop() Logger {
	return nopLogger{}
}

// Stderr returns a Logger writing text records to standard error, for
// callers that want diagnostics visible without configuring slog.
func Stderr() Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
