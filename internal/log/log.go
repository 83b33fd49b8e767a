// Package log provides the minimal logger the client threads through its
// components: one line per event, no structured fields, matching the
// teacher's own internal/log package rather than pulling in a
// structured-logging backend (the spec explicitly treats the logging
// backend as an external collaborator; a client library shouldn't force
// a particular logging framework on its caller).
package log

import (
	"io"
	stdlog "log"
)

// Logger is a thin, swappable wrapper around the standard library
// logger. Callers that already have a *log.Logger, an io.Writer, or
// nothing at all (io.Discard) can all produce one.
type Logger struct {
	l *stdlog.Logger
}

// New returns a Logger that writes to w, one line per call, with no
// timestamp prefix (timestamps are the caller's concern if it redirects
// to something that adds them).
func New(w io.Writer) *Logger {
	return &Logger{l: stdlog.New(w, "", 0)}
}

// Discard is a Logger that drops everything, for callers that don't want
// any client-side logging.
var Discard = New(io.Discard)

func (lg *Logger) Printf(format string, v ...any) {
	if lg == nil {
		return
	}
	lg.l.Printf(format, v...)
}

func (lg *Logger) Print(v ...any) {
	if lg == nil {
		return
	}
	lg.l.Print(v...)
}
