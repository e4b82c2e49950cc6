package serialmux

import (
	"io"
)

// SerialPorter defines the minimal interface needed for a serial port. The
// instrument only talks, so reading is all the mux does. This abstraction
// enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadCloser
}

// SerialPortOpener opens a serial port at path. Tests substitute it to avoid
// touching hardware.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)
