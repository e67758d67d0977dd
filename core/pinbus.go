package core

import (
	"time"

	"tinygo.org/x/drivers"
)

// PinBusConfig assigns GPIO pins to the multiplexed DDS bus
type PinBusConfig struct {
	Address   []GPIOPin // Decoder address lines, LSB first
	FrameSync GPIOPin   // Active-low frame strobe, routed to the selected chip by the decoder
	Reset     GPIOPin   // DDS RESET
	Sleep     GPIOPin   // DDS SLEEP
	FSelect   GPIOPin   // DDS FSELECT
	PSelect   GPIOPin   // DDS PSELECT
	Rate      uint32    // Bus clock in Hz, converts Delay cycles to time
}

// PinBus implements SerialBus with GPIO lines for addressing and control and
// a TinyGo SPI for the data.
//
// The SPI transfer is synchronous, so Busy is always false once Put returns.
// GPIO failures cannot be reported through SerialBus; the first one is kept
// and returned by Err.
type PinBus struct {
	gpio GPIODriver
	spi  drivers.SPI
	cfg  PinBusConfig

	mode    BusMode
	inFrame bool
	wbuf    [1]byte
	rbuf    [1]byte
	err     error
	wait    func(time.Duration)
}

// NewPinBus configures every bus pin as an output and idles the frame strobe high.
func NewPinBus(gpio GPIODriver, spi drivers.SPI, cfg PinBusConfig) (*PinBus, error) {
	pins := append([]GPIOPin{cfg.FrameSync, cfg.Reset, cfg.Sleep, cfg.FSelect, cfg.PSelect}, cfg.Address...)
	for _, pin := range pins {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
	}
	if err := gpio.SetPin(cfg.FrameSync, true); err != nil {
		return nil, err
	}

	return &PinBus{
		gpio: gpio,
		spi:  spi,
		cfg:  cfg,
		wait: spinWait,
	}, nil
}

// SetWait replaces the busy-wait used by Delay (tests substitute a recorder).
func (b *PinBus) SetWait(wait func(time.Duration)) {
	b.wait = wait
}

// SelectChip drives the decoder address lines with code
func (b *PinBus) SelectChip(code uint8) {
	for i, pin := range b.cfg.Address {
		b.set(pin, code>>uint(i)&1 != 0)
	}
}

// SetControl drives the DDS control lines
func (b *PinBus) SetControl(lines ControlLines) {
	b.set(b.cfg.Reset, lines&LineReset != 0)
	b.set(b.cfg.Sleep, lines&LineSleep != 0)
	b.set(b.cfg.FSelect, lines&LineFSelect != 0)
	b.set(b.cfg.PSelect, lines&LinePSelect != 0)
}

// SetMode switches between write-only and duplex transfers
func (b *PinBus) SetMode(mode BusMode) {
	b.mode = mode
}

// Mode returns the current transfer mode
func (b *PinBus) Mode() BusMode {
	return b.mode
}

// Put clocks out one byte, opening a frame if none is open
func (b *PinBus) Put(v byte, endOfFrame bool) {
	if !b.inFrame {
		b.set(b.cfg.FrameSync, false)
		b.inFrame = true
	}

	b.wbuf[0] = v
	var err error
	if b.mode == BusModeDuplex {
		err = b.spi.Tx(b.wbuf[:], b.rbuf[:])
	} else {
		err = b.spi.Tx(b.wbuf[:], nil)
	}
	b.fail(err)

	if endOfFrame {
		b.set(b.cfg.FrameSync, true)
		b.inFrame = false
	}
}

// Busy reports whether a transfer is in flight
func (b *PinBus) Busy() bool {
	return false
}

// Delay busy-waits for cycles periods of the bus clock
func (b *PinBus) Delay(cycles uint32) {
	if b.cfg.Rate == 0 || cycles == 0 {
		return
	}
	b.wait(time.Duration(uint64(cycles) * uint64(time.Second) / uint64(b.cfg.Rate)))
}

// LastRead returns the byte shifted in by the last duplex Put
func (b *PinBus) LastRead() byte {
	return b.rbuf[0]
}

// Err returns the first GPIO or SPI error seen by the bus
func (b *PinBus) Err() error {
	return b.err
}

func (b *PinBus) set(pin GPIOPin, value bool) {
	b.fail(b.gpio.SetPin(pin, value))
}

func (b *PinBus) fail(err error) {
	if err != nil && b.err == nil {
		b.err = err
		DebugPrintln("[BUS] " + err.Error())
	}
}

// spinWait burns CPU until d has elapsed
func spinWait(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
