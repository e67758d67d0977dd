// Package panel drives the front panel of the generator: the 4x4 keypad
// used to type in a frequency or phase, and the status LEDs.
package panel

import (
	"errors"
	"sync/atomic"

	"ddsgen/core"
)

// KeyMap is the legend of the keypad, indexed by row then column
var KeyMap = [4][4]byte{
	{'1', '2', '3', 'h'},
	{'4', '5', '6', 'k'},
	{'7', '8', '9', 'm'},
	{'p', '0', 'f', 'e'},
}

// noKey marks a latched interrupt whose scan found nothing (contact bounce)
const noKey = 0

var ErrKeypadPins = errors.New("keypad needs 4 row and 4 column pins")

// Keypad scans a 4x4 matrix. Columns are outputs left high while idle so any
// key pulls its row high and raises the row interrupt; OnInterrupt then
// scans one column at a time to find the key.
type Keypad struct {
	gpio core.GPIODriver
	rows [4]core.GPIOPin
	cols [4]core.GPIOPin

	last    atomic.Uint32
	pending atomic.Bool
}

// NewKeypad configures the rows as pulled-down inputs and drives every
// column high.
func NewKeypad(gpio core.GPIODriver, rows, cols []core.GPIOPin) (*Keypad, error) {
	if len(rows) != 4 || len(cols) != 4 {
		return nil, ErrKeypadPins
	}
	k := &Keypad{gpio: gpio}
	copy(k.rows[:], rows)
	copy(k.cols[:], cols)

	for _, pin := range k.rows {
		if err := gpio.ConfigureInputPullDown(pin); err != nil {
			return nil, err
		}
	}
	for _, pin := range k.cols {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
	}
	if err := k.driveColumns(0xF); err != nil {
		return nil, err
	}
	return k, nil
}

// RowPins returns the pins whose rising edge should call OnInterrupt
func (k *Keypad) RowPins() []core.GPIOPin {
	return k.rows[:]
}

// Scan returns the pressed key. Columns are tried left to right and the
// first row reading high wins, so with several keys down the top-left one
// is reported. All columns are high again when Scan returns.
func (k *Keypad) Scan() (byte, bool) {
	defer k.driveColumns(0xF)

	for c := range k.cols {
		if k.driveColumns(1<<c) != nil {
			return 0, false
		}
		for r, pin := range k.rows {
			if high, err := k.gpio.GetPin(pin); err == nil && high {
				return KeyMap[r][c], true
			}
		}
	}
	return 0, false
}

// OnInterrupt latches the current key for LastKey. It is meant to run from
// the row pin interrupt.
func (k *Keypad) OnInterrupt() {
	key, ok := k.Scan()
	if !ok {
		key = noKey
	}
	k.last.Store(uint32(key))
	k.pending.Store(true)
	if ok {
		core.RecordEvent(core.EvtKeyPress, core.GetTime(), uint32(key), 0)
	}
}

// LastKey consumes the latched key. ok is false when nothing new was
// latched or the latched scan found no key.
func (k *Keypad) LastKey() (byte, bool) {
	if !k.pending.Swap(false) {
		return 0, false
	}
	key := byte(k.last.Load())
	return key, key != noKey
}

func (k *Keypad) driveColumns(mask uint8) error {
	for i, pin := range k.cols {
		if err := k.gpio.SetPin(pin, mask&(1<<i) != 0); err != nil {
			return err
		}
	}
	return nil
}
