//go:build rp2040

package main

import (
	"errors"
	"machine"

	"ddsgen/core"
)

var errPinNotConfigured = errors.New("pin not configured")

// RPGPIODriver implements core.GPIODriver on the RP2040 bank 0 pins
type RPGPIODriver struct {
	configured map[core.GPIOPin]machine.Pin
}

func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configured: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a push-pull output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

// ConfigureInputPullDown configures a pin as an input with the pull-down enabled
func (d *RPGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPulldown)
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	if pin > 29 {
		return errors.New("rp2040 has gpio0-gpio29")
	}
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: mode})
	d.configured[pin] = p
	return nil
}

// SetPin drives a configured output
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.configured[pin]
	if !ok {
		return errPinNotConfigured
	}
	p.Set(value)
	return nil
}

// GetPin reads a configured pin
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	p, ok := d.configured[pin]
	if !ok {
		return false, errPinNotConfigured
	}
	return p.Get(), nil
}

// OnRisingEdge calls fn from the GPIO interrupt whenever pin goes high
func (d *RPGPIODriver) OnRisingEdge(pin core.GPIOPin, fn func()) error {
	p, ok := d.configured[pin]
	if !ok {
		return errPinNotConfigured
	}
	return p.SetInterrupt(machine.PinRising, func(machine.Pin) { fn() })
}
