package core

// Buffer selects one of the two DDS register sets (FREQ0/PHASE0 or FREQ1/PHASE1)
type Buffer uint8

const (
	BufferA Buffer = 0
	BufferB Buffer = 1
)

// Other returns the buffer that is not b.
func (b Buffer) Other() Buffer {
	return b ^ 1
}

// Register tag masks indexed by target buffer
var (
	freqBufferMask  = [2]byte{AD9834_TAG_FREQ0, AD9834_TAG_FREQ1}
	phaseBufferMask = [2]byte{AD9834_TAG_PHASE0, AD9834_TAG_PHASE1}
)

// FrameByte is one byte clocked onto the bus. Boundary bytes close the
// current frame; the bus raises its end-of-frame signal after them.
type FrameByte struct {
	Value    byte
	Boundary bool
}

// Frame is the byte sequence for one tuning update
type Frame []FrameByte

// Frame positions
const (
	FrameFreqMSB = iota
	FrameFreqMidHigh
	FrameFreqMidLow
	FrameFreqLSB
	FramePhaseHigh
	FramePhaseLSB
	FrameLength
)

// BuildFrame splits a tuning word pair into the bytes that load target.
//
// The frequency word travels as two 14-bit halves, upper half first, each
// preceded by the FREQ0/FREQ1 tag. The phase word follows as one 12-bit write
// tagged PHASE0/PHASE1. Each 16-bit write ends on a boundary byte.
func BuildFrame(freqWord uint32, phaseWord uint16, target Buffer) Frame {
	freqTag := freqBufferMask[target&1]
	phaseTag := phaseBufferMask[target&1]

	upper := (freqWord >> AD9834_FREQ_HALF_BITS) & AD9834_FREQ_HALF_MASK
	lower := freqWord & AD9834_FREQ_HALF_MASK
	phase := phaseWord & AD9834_PHASE_MASK

	return Frame{
		FrameFreqMSB:     {Value: freqTag | byte(upper>>8)&AD9834_FREQ_DATA_HIGH},
		FrameFreqMidHigh: {Value: byte(upper), Boundary: true},
		FrameFreqMidLow:  {Value: freqTag | byte(lower>>8)&AD9834_FREQ_DATA_HIGH},
		FrameFreqLSB:     {Value: byte(lower), Boundary: true},
		FramePhaseHigh:   {Value: phaseTag | byte(phase>>8)&AD9834_PHASE_DATA_HIGH},
		FramePhaseLSB:    {Value: byte(phase), Boundary: true},
	}
}

// ControlFrame returns the two-byte write of a control register value.
func ControlFrame(control uint16) Frame {
	return Frame{
		{Value: AD9834_TAG_CONTROL | byte(control>>8)&0x3F},
		{Value: byte(control), Boundary: true},
	}
}

// Bytes returns the raw byte values of the frame.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f))
	for i, fb := range f {
		out[i] = fb.Value
	}
	return out
}
