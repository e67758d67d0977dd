package core

import (
	"errors"
	"fmt"
)

// recordingBus is a SerialBus that logs every call
type recordingBus struct {
	ops    []string
	frames [][]byte
	cur    []byte

	chip  uint8
	lines ControlLines
	mode  BusMode

	busyPolls int // Busy reports true this many times after each Put
	pending   int
	delays    uint32

	// Put called while the bus was not addressed to the DDS in write mode
	violations []string
}

func newRecordingBus() *recordingBus {
	return &recordingBus{chip: uint8(ChipNone)}
}

func (b *recordingBus) SelectChip(code uint8) {
	b.chip = code
	b.ops = append(b.ops, fmt.Sprintf("select %d", code))
}

func (b *recordingBus) SetControl(lines ControlLines) {
	b.lines = lines
	b.ops = append(b.ops, fmt.Sprintf("lines %04b", lines))
}

func (b *recordingBus) SetMode(mode BusMode) {
	b.mode = mode
	b.ops = append(b.ops, fmt.Sprintf("mode %d", mode))
}

func (b *recordingBus) Put(v byte, endOfFrame bool) {
	if b.chip != uint8(ChipDDS) || b.mode != BusModeWrite {
		b.violations = append(b.violations, fmt.Sprintf("put 0x%02X chip=%d mode=%d", v, b.chip, b.mode))
	}
	b.cur = append(b.cur, v)
	if endOfFrame {
		b.frames = append(b.frames, b.cur)
		b.ops = append(b.ops, fmt.Sprintf("frame % X", b.cur))
		b.cur = nil
	}
	b.pending = b.busyPolls
}

func (b *recordingBus) Busy() bool {
	if b.pending > 0 {
		b.pending--
		return true
	}
	return false
}

func (b *recordingBus) Delay(cycles uint32) {
	b.delays += cycles
	b.ops = append(b.ops, fmt.Sprintf("delay %d", cycles))
}

func (b *recordingBus) reset() {
	b.ops = nil
	b.frames = nil
	b.delays = 0
}

// allBytes flattens the frames written since the last reset
func (b *recordingBus) allBytes() []byte {
	var out []byte
	for _, f := range b.frames {
		out = append(out, f...)
	}
	return out
}

// fakeGPIO records pin levels
type fakeGPIO struct {
	outputs map[GPIOPin]bool
	inputs  map[GPIOPin]bool
	levels  map[GPIOPin]bool
	history []string
	failPin GPIOPin
	fail    bool
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{
		outputs: make(map[GPIOPin]bool),
		inputs:  make(map[GPIOPin]bool),
		levels:  make(map[GPIOPin]bool),
	}
}

var errPinFault = errors.New("pin fault")

func (g *fakeGPIO) ConfigureOutput(pin GPIOPin) error {
	g.outputs[pin] = true
	return nil
}

func (g *fakeGPIO) ConfigureInputPullDown(pin GPIOPin) error {
	g.inputs[pin] = true
	return nil
}

func (g *fakeGPIO) SetPin(pin GPIOPin, value bool) error {
	if g.fail && pin == g.failPin {
		return errPinFault
	}
	g.levels[pin] = value
	g.history = append(g.history, fmt.Sprintf("%d=%t", pin, value))
	return nil
}

func (g *fakeGPIO) GetPin(pin GPIOPin) (bool, error) {
	return g.levels[pin], nil
}

// fakeSPI implements drivers.SPI and notes the frame strobe level per byte
type fakeSPI struct {
	gpio      *fakeGPIO
	frameSync GPIOPin
	written   []byte
	syncLow   []bool
	readNil   []bool
	reply     byte
	err       error
}

func (s *fakeSPI) Tx(w, r []byte) error {
	if s.err != nil {
		return s.err
	}
	for i, v := range w {
		s.written = append(s.written, v)
		s.syncLow = append(s.syncLow, !s.gpio.levels[s.frameSync])
		s.readNil = append(s.readNil, r == nil)
		if r != nil {
			r[i] = s.reply
		}
	}
	return nil
}

func (s *fakeSPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.Tx([]byte{b}, r[:])
	return r[0], err
}
