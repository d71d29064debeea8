package serialmux

import (
	"io"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortOpener opens a port at path. NewRobotLink takes one so tests can
// substitute a TestableSerialPort for the device.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)
