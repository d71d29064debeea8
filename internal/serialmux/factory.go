package serialmux

import (
	"go.bug.st/serial"
)

// OpenSerialPort opens a go.bug.st serial port. It is the production
// SerialPortOpener.
func OpenSerialPort(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	return serial.Open(path, mode)
}

// NewRobotLink returns a disabled mux when path is empty, otherwise a mux
// over the port returned by open.
func NewRobotLink(path string, opts PortOptions, open SerialPortOpener) (SerialMuxInterface, error) {
	if path == "" {
		return NewDisabledSerialMux(), nil
	}
	if open == nil {
		open = OpenSerialPort
	}
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(port), nil
}
