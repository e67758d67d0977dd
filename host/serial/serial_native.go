//go:build !wasm

package serial

import (
	"errors"
	"fmt"

	"github.com/tarm/serial"
)

var ErrNoDevice = errors.New("serial device not set")

// NativePort is a Port backed by the operating system serial driver
type NativePort struct {
	port *serial.Port
	cfg  Config
}

// Open opens cfg.Device
func Open(cfg *Config) (*NativePort, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, ErrNoDevice
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, cfg: *cfg}, nil
}

func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	return p.port.Close()
}

// Flush discards data received but not yet read, and data written but not
// yet transmitted. Call it after opening to drop stale frames.
func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// Device returns the path the port was opened with
func (p *NativePort) Device() string {
	return p.cfg.Device
}
