// Package serial opens the USB CDC port the generator firmware enumerates as.
package serial

import (
	"io"
	"time"
)

// Port is a byte stream to the firmware. NativePort implements it with
// github.com/tarm/serial; tests use net.Pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards anything buffered in either direction
	Flush() error
}

// Config describes one serial device
type Config struct {
	Device string // e.g. "/dev/ttyACM0", "COM3"

	// Baud is ignored by USB CDC but required by the OS driver
	Baud int

	// ReadTimeout bounds each Read; 0 blocks
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings used for the RP2040 CDC port
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
