//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers"

	"ddsgen/config"
	"ddsgen/core"
)

// spiPins lists the SCK/SDO/SDI combinations each controller can be routed to
var spiPins = []struct {
	spi           *machine.SPI
	sck, sdo, sdi machine.Pin
}{
	{machine.SPI0, machine.GPIO2, machine.GPIO3, machine.GPIO0},
	{machine.SPI0, machine.GPIO6, machine.GPIO7, machine.GPIO4},
	{machine.SPI0, machine.GPIO18, machine.GPIO19, machine.GPIO16},
	{machine.SPI0, machine.GPIO22, machine.GPIO23, machine.GPIO20},
	{machine.SPI1, machine.GPIO10, machine.GPIO11, machine.GPIO8},
	{machine.SPI1, machine.GPIO14, machine.GPIO15, machine.GPIO12},
	{machine.SPI1, machine.GPIO26, machine.GPIO27, machine.GPIO24},
}

// ConfigureSPI sets up the hardware controller that owns the configured
// pins. Pin sets no controller can reach get a bit-banged bus instead.
func ConfigureSPI(bus config.BusConfig, gpio core.GPIODriver) (drivers.SPI, error) {
	sck, err := config.ParsePin(bus.SCK)
	if err != nil {
		return nil, err
	}
	sdo, err := config.ParsePin(bus.SDO)
	if err != nil {
		return nil, err
	}
	sdi, err := config.ParsePin(bus.SDI)
	if err != nil {
		return nil, err
	}

	for _, p := range spiPins {
		if p.sck != machine.Pin(sck) || p.sdo != machine.Pin(sdo) || p.sdi != machine.Pin(sdi) {
			continue
		}
		err := p.spi.Configure(machine.SPIConfig{
			Frequency: bus.SPIFrequency,
			Mode:      bus.SPIMode,
			SCK:       p.sck,
			SDO:       p.sdo,
			SDI:       p.sdi,
		})
		if err != nil {
			return nil, err
		}
		return p.spi, nil
	}

	core.DebugPrintln("[SPI] no controller on " + bus.SCK + "/" + bus.SDO + "/" + bus.SDI + ", using software SPI")
	return core.NewSoftSPI(gpio, sck, sdo, sdi, bus.SPIMode, bus.SPIFrequency)
}
