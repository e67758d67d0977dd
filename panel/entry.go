package panel

import "math"

// TuningRequest is a complete frequency and phase for the DDS controller
type TuningRequest struct {
	FrequencyHz  uint32
	PhaseRadians float64
}

// maxDigits bounds the typed number so it cannot overflow a uint32 before
// the unit multiplier is applied.
const maxDigits = 9

// Entry turns keypad presses into tuning requests.
//
// Digits accumulate into a number. A unit key commits it: h and f as Hz,
// k as kHz, m as MHz. p commits it as a phase in degrees. e clears the
// number. Committing keeps the other half of the tuning unchanged, so
// typing a phase does not disturb the frequency.
type Entry struct {
	maxHz   uint32
	current TuningRequest

	value  uint32
	digits int
}

// NewEntry starts from current. Frequencies at or above maxHz are refused.
func NewEntry(maxHz uint32, current TuningRequest) *Entry {
	return &Entry{maxHz: maxHz, current: current}
}

// Press handles one key. It returns a request when the key committed a
// valid value.
func (e *Entry) Press(key byte) (TuningRequest, bool) {
	switch key {
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if e.digits < maxDigits {
			e.value = e.value*10 + uint32(key-'0')
			e.digits++
		}
		return TuningRequest{}, false
	case 'h', 'f':
		return e.commitFrequency(1)
	case 'k':
		return e.commitFrequency(1000)
	case 'm':
		return e.commitFrequency(1000000)
	case 'p':
		return e.commitPhase()
	case 'e':
		e.Clear()
	}
	return TuningRequest{}, false
}

// Pending returns the number typed so far and how many digits it has
func (e *Entry) Pending() (uint32, int) {
	return e.value, e.digits
}

// Current returns the last committed tuning
func (e *Entry) Current() TuningRequest {
	return e.current
}

// Clear discards the digits typed so far
func (e *Entry) Clear() {
	e.value = 0
	e.digits = 0
}

func (e *Entry) commitFrequency(unit uint64) (TuningRequest, bool) {
	if e.digits == 0 {
		return TuningRequest{}, false
	}
	hz := uint64(e.value) * unit
	e.Clear()
	if hz >= uint64(e.maxHz) {
		return TuningRequest{}, false
	}
	e.current.FrequencyHz = uint32(hz)
	return e.current, true
}

func (e *Entry) commitPhase() (TuningRequest, bool) {
	if e.digits == 0 {
		return TuningRequest{}, false
	}
	deg := e.value
	e.Clear()
	if deg >= 360 {
		return TuningRequest{}, false
	}
	e.current.PhaseRadians = DegreesToRadians(float64(deg))
	return e.current, true
}

// DegreesToRadians converts an angle for Controller.Program
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
