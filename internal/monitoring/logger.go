// Package monitoring provides the diagnostic log sink shared by the library
// packages. It writes through log.Printf until replaced with SetLogger.
package monitoring

import (
	"log"
	"sync/atomic"
)

type logFunc func(format string, v ...interface{})

var sink atomic.Pointer[logFunc]

func init() {
	SetLogger(log.Printf)
}

// Logf writes a diagnostic message to the current sink. Safe to call from any
// goroutine, including while SetLogger runs.
func Logf(format string, v ...interface{}) {
	(*sink.Load())(format, v...)
}

// SetLogger replaces the sink. Passing nil mutes diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	lf := logFunc(f)
	sink.Store(&lf)
}
