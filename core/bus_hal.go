package core

// BusMode selects how the serial engine treats the data line
type BusMode uint8

const (
	// BusModeDuplex is the default read-write mode, one byte in per byte out
	BusModeDuplex BusMode = iota
	// BusModeWrite is transmit only and honours end-of-frame markers
	BusModeWrite
)

// ControlLines is a bitmask of the latched DDS control outputs that sit next
// to the mux address lines.
type ControlLines uint8

const (
	LineReset   ControlLines = 1 << iota // DDS RESET pin
	LineSleep                            // DDS SLEEP pin
	LineFSelect                          // DDS FSELECT pin, high selects FREQ1
	LinePSelect                          // DDS PSELECT pin, high selects PHASE1
)

// SerialBus is the platform bus primitive the DDS core drives.
// Platform-specific implementations handle actual hardware control.
//
// None of the methods report errors: the only condition the core observes is
// Busy, which it polls until clear.
type SerialBus interface {
	// SelectChip drives the mux address lines with code
	SelectChip(code uint8)

	// SetControl drives the latched control lines
	SetControl(lines ControlLines)

	// SetMode switches between write-only and duplex operation
	SetMode(mode BusMode)

	// Put clocks out one byte. endOfFrame closes the current frame after it.
	Put(b byte, endOfFrame bool)

	// Busy reports whether the serial engine is still shifting data
	Busy() bool

	// Delay busy-waits for the given number of bus-clock cycles
	Delay(cycles uint32)
}

// Global singleton used by core code.
var busDriver SerialBus

// SetBusDriver is called by target-specific code to register its bus.
func SetBusDriver(b SerialBus) {
	busDriver = b
}

// MustBus returns the configured bus or panics if missing.
func MustBus() SerialBus {
	if busDriver == nil {
		panic("serial bus not configured")
	}
	return busDriver
}
