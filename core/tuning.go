package core

import "math"

// Fixed-point scales of the DDS tuning registers
const (
	FreqScale  = 1 << AD9834_FREQ_BITS  // 2^28 counts per reference clock
	PhaseScale = 1 << AD9834_PHASE_BITS // 2^12 counts per full turn
)

// EncodeTuningWords converts a frequency and phase into DDS register words.
//
//	freqWord  = round(frequencyHz * 2^28 / referenceClockHz)
//	phaseWord = round(phaseRadians * 2^12 / 2pi)
//
// Both round half away from zero. The valid domain is
// 0 <= frequencyHz < referenceClockHz and 0 <= phaseRadians < 2pi. Nothing is
// clamped or rejected: the phase word wraps modulo one turn and BuildFrame
// keeps only the low 28 frequency bits. referenceClockHz must be non-zero.
func EncodeTuningWords(frequencyHz uint32, phaseRadians float64, referenceClockHz uint32) (uint32, uint16) {
	return EncodeFrequency(frequencyHz, referenceClockHz), EncodePhase(phaseRadians)
}

// EncodeFrequency returns round(frequencyHz * 2^28 / referenceClockHz).
// Integer arithmetic keeps the half-LSB decision exact.
func EncodeFrequency(frequencyHz uint32, referenceClockHz uint32) uint32 {
	num := uint64(frequencyHz) << AD9834_FREQ_BITS
	ref := uint64(referenceClockHz)
	return uint32((num + ref/2) / ref)
}

// EncodePhase returns round(phaseRadians * 2^12 / 2pi) modulo 2^12.
// Phases within half an LSB of 2pi round up to a full turn and wrap to 0.
func EncodePhase(phaseRadians float64) uint16 {
	// Through int64 so negative inputs wrap instead of hitting a
	// platform-defined float to unsigned conversion
	return uint16(int64(math.Round(phaseRadians * PhaseScale / (2 * math.Pi)))) & AD9834_PHASE_MASK
}

// DecodeFrequency returns the output frequency in Hz produced by freqWord.
func DecodeFrequency(freqWord uint32, referenceClockHz uint32) float64 {
	return float64(freqWord) * float64(referenceClockHz) / FreqScale
}

// DecodePhase returns the phase offset in radians produced by phaseWord.
func DecodePhase(phaseWord uint16) float64 {
	return float64(phaseWord) * 2 * math.Pi / PhaseScale
}

// FrequencyResolution is the output frequency step of one freqWord LSB.
func FrequencyResolution(referenceClockHz uint32) float64 {
	return float64(referenceClockHz) / FreqScale
}
