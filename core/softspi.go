package core

import (
	"errors"
	"time"
)

var (
	ErrSPIMode   = errors.New("spi mode must be 0-3")
	ErrSPILength = errors.New("spi read and write buffers differ in length")
)

// SoftSPI bit-bangs SPI on three GPIO pins and implements drivers.SPI.
// Bits go out MSB first.
type SoftSPI struct {
	gpio          GPIODriver
	sck, sdo, sdi GPIOPin

	cpol bool // clock idles high
	cpha bool // sample on the trailing edge
	half time.Duration
	wait func(time.Duration)
}

// NewSoftSPI configures sck and sdo as outputs, sdi as an input, and parks
// the clock at its idle level. A zero rate runs at 100 kHz.
func NewSoftSPI(gpio GPIODriver, sck, sdo, sdi GPIOPin, mode uint8, rate uint32) (*SoftSPI, error) {
	if mode > 3 {
		return nil, ErrSPIMode
	}
	if rate == 0 {
		rate = 100000
	}
	s := &SoftSPI{
		gpio: gpio,
		sck:  sck,
		sdo:  sdo,
		sdi:  sdi,
		cpol: mode&2 != 0,
		cpha: mode&1 != 0,
		half: time.Second / time.Duration(2*rate),
		wait: spinWait,
	}

	if err := gpio.ConfigureOutput(sck); err != nil {
		return nil, err
	}
	if err := gpio.ConfigureOutput(sdo); err != nil {
		return nil, err
	}
	if err := gpio.ConfigureInputPullDown(sdi); err != nil {
		return nil, err
	}
	if err := gpio.SetPin(sck, s.cpol); err != nil {
		return nil, err
	}
	return s, nil
}

// SetWait replaces the half-period delay (tests pass a no-op)
func (s *SoftSPI) SetWait(wait func(time.Duration)) {
	s.wait = wait
}

// Tx writes w and, when r is not nil, fills r with the bytes read back.
// A nil w clocks out zeros.
func (s *SoftSPI) Tx(w, r []byte) error {
	n := len(w)
	if w == nil {
		n = len(r)
	} else if r != nil && len(r) != len(w) {
		return ErrSPILength
	}

	for i := 0; i < n; i++ {
		var out byte
		if w != nil {
			out = w[i]
		}
		in, err := s.Transfer(out)
		if err != nil {
			return err
		}
		if r != nil {
			r[i] = in
		}
	}
	return nil
}

// Transfer clocks one byte out and returns the byte clocked in
func (s *SoftSPI) Transfer(b byte) (byte, error) {
	var in byte
	for bit := 7; bit >= 0; bit-- {
		level := b&(1<<uint(bit)) != 0

		if !s.cpha {
			if err := s.gpio.SetPin(s.sdo, level); err != nil {
				return 0, err
			}
			s.wait(s.half)
		}
		if err := s.gpio.SetPin(s.sck, !s.cpol); err != nil {
			return 0, err
		}
		if s.cpha {
			if err := s.gpio.SetPin(s.sdo, level); err != nil {
				return 0, err
			}
		} else if s.sample() {
			in |= 1 << uint(bit)
		}
		s.wait(s.half)

		if err := s.gpio.SetPin(s.sck, s.cpol); err != nil {
			return 0, err
		}
		if s.cpha {
			if s.sample() {
				in |= 1 << uint(bit)
			}
			s.wait(s.half)
		}
	}
	return in, nil
}

func (s *SoftSPI) sample() bool {
	high, err := s.gpio.GetPin(s.sdi)
	return err == nil && high
}
