//go:build !wasm

package ddsctl

import "ddsgen/host/serial"

// Dial opens a serial device and fetches its dictionary
func Dial(device string) (*Client, error) {
	port, err := serial.Open(serial.DefaultConfig(device))
	if err != nil {
		return nil, err
	}
	_ = port.Flush()

	c := NewClient(port)
	if err := c.Connect(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
