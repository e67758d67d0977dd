//go:build rp2040

package main

import "machine"

// InitUSB configures machine.Serial, which TinyGo maps to USB CDC on the RP2040
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of received bytes waiting
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads one received byte
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes data to the host
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
