// Package logging supplies the one-method logger interface used throughout
// wolfnet, backed by the standard library's log package.
package logging

import "log"

// Logger is the minimal sink every component logs through, so tests can
// substitute a recorder without touching the standard logger's global state.
type Logger interface {
	Printf(format string, v ...any)
}

type StdLogger struct{}

func NewStdLogger() Logger {
	return StdLogger{}
}

func (StdLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
