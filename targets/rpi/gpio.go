//go:build linux

package main

import (
	"errors"
	"sync"

	"github.com/warthog618/gpio"

	"ddsgen/core"
)

var errPinNotConfigured = errors.New("pin not configured")

// PiGPIO implements core.GPIODriver on the Raspberry Pi header through
// /dev/gpiomem.
type PiGPIO struct {
	mu   sync.Mutex
	pins map[core.GPIOPin]*gpio.Pin
}

// OpenGPIO maps the GPIO registers. Close releases them.
func OpenGPIO() (*PiGPIO, error) {
	if err := gpio.Open(); err != nil {
		return nil, err
	}
	return &PiGPIO{pins: make(map[core.GPIOPin]*gpio.Pin)}, nil
}

// Close returns every configured pin to an input and unmaps the registers
func (g *PiGPIO) Close() error {
	g.mu.Lock()
	for _, p := range g.pins {
		p.Unwatch()
		p.Input()
	}
	g.mu.Unlock()
	return gpio.Close()
}

func (g *PiGPIO) ConfigureOutput(pin core.GPIOPin) error {
	p := g.pin(pin)
	p.Low()
	p.Output()
	return nil
}

func (g *PiGPIO) ConfigureInputPullDown(pin core.GPIOPin) error {
	p := g.pin(pin)
	p.Input()
	p.PullDown()
	return nil
}

func (g *PiGPIO) SetPin(pin core.GPIOPin, value bool) error {
	p, err := g.lookup(pin)
	if err != nil {
		return err
	}
	p.Write(gpio.Level(value))
	return nil
}

func (g *PiGPIO) GetPin(pin core.GPIOPin) (bool, error) {
	p, err := g.lookup(pin)
	if err != nil {
		return false, err
	}
	return bool(p.Read()), nil
}

// OnRisingEdge calls fn from the gpio watcher goroutine when pin goes high
func (g *PiGPIO) OnRisingEdge(pin core.GPIOPin, fn func()) error {
	p, err := g.lookup(pin)
	if err != nil {
		return err
	}
	return p.Watch(gpio.EdgeRising, func(*gpio.Pin) { fn() })
}

func (g *PiGPIO) pin(pin core.GPIOPin) *gpio.Pin {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pins[pin]
	if !ok {
		p = gpio.NewPin(int(pin))
		g.pins[pin] = p
	}
	return p
}

func (g *PiGPIO) lookup(pin core.GPIOPin) (*gpio.Pin, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pins[pin]
	if !ok {
		return nil, errPinNotConfigured
	}
	return p, nil
}
