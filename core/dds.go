package core

// DDSConfig holds the fixed reference constants of the waveform generator
type DDSConfig struct {
	ReferenceClockHz uint32 // MCLK feeding the phase accumulator
	SettleCycles     uint32 // Bus-clock cycles waited after control line changes
}

// DefaultDDSConfig returns the configuration for a 75 MHz AD9834.
func DefaultDDSConfig() DDSConfig {
	return DDSConfig{
		ReferenceClockHz: AD9834_MCLK_MAX,
		SettleCycles:     AD9834_SETTLE_CYCLES,
	}
}

// DeviceState is the last tuning applied to the DDS
type DeviceState struct {
	FrequencyHz  uint32
	PhaseRadians float64
	ActiveBuffer Buffer // Register set currently driving the output

	FreqWord  uint32 // Frequency word loaded into ActiveBuffer
	PhaseWord uint16 // Phase word loaded into ActiveBuffer
}

// DDS drives one AD9834 on a multiplexed serial bus.
//
// Updates are double-buffered: Program always loads the register set that is
// not driving the output, then flips FSELECT/PSELECT to it. DDS is not safe
// for concurrent use; the control loop calls it from one goroutine.
type DDS struct {
	cfg     DDSConfig
	bus     SerialBus
	mux     *Multiplexer
	state   DeviceState
	updates uint32
	ready   bool
}

// NewDDS creates a controller on bus. Call Init once before Program.
func NewDDS(bus SerialBus, cfg DDSConfig) *DDS {
	return &DDS{
		cfg: cfg,
		bus: bus,
		mux: NewMultiplexer(bus),
	}
}

// Config returns the controller's reference constants.
func (d *DDS) Config() DDSConfig {
	return d.cfg
}

// State returns the last applied tuning.
func (d *DDS) State() DeviceState {
	return d.state
}

// Mux returns the bus multiplexer shared with the other chips.
func (d *DDS) Mux() *Multiplexer {
	return d.mux
}

// Updates returns how many Program calls reached the bus.
func (d *DDS) Updates() uint32 {
	return d.updates
}

// Initialized reports whether Init has run.
func (d *DDS) Initialized() bool {
	return d.ready
}

// Init loads zero frequency and phase into both register sets and leaves
// the chip in reset and sleep until the first Program.
func (d *DDS) Init() {
	d.mux.Select(ChipDDS)
	d.bus.SetMode(BusModeWrite)
	d.writeFrame(ControlFrame(AD9834_CONFIG_RESET))
	d.mux.AssertReset()

	d.writeFrame(BuildFrame(0, 0, BufferA))
	d.writeFrame(BuildFrame(0, 0, BufferB))

	d.writeFrame(ControlFrame(AD9834_CONFIG_RUNNING))
	d.mux.ReleaseReset()
	d.bus.Delay(d.cfg.SettleCycles)

	// Park in reset with the DAC asleep
	d.mux.SetLines(LineReset | LineSleep)
	d.mux.Deselect()
	d.bus.SetMode(BusModeDuplex)

	d.state = DeviceState{ActiveBuffer: BufferA}
	d.ready = true
	RecordEvent(EvtDDSInit, GetTime(), 0, 0)
	DebugPrintln("[DDS] init ref_clock=" + utoa(d.cfg.ReferenceClockHz))
}

// Program tunes the output to frequencyHz and phaseRadians.
//
// Nothing is sent when both match the current state. Otherwise both words
// are written to the inactive register set, which then becomes active.
// The call blocks until the bus drains and the settling delay has passed.
func (d *DDS) Program(frequencyHz uint32, phaseRadians float64) {
	freqChanged := frequencyHz != d.state.FrequencyHz
	phaseChanged := phaseRadians != d.state.PhaseRadians

	if !freqChanged && !phaseChanged {
		RecordEvent(EvtDDSSkip, GetTime(), d.state.FreqWord, uint32(d.state.PhaseWord))
		return
	}

	// The frame always carries both words, so the unchanged one is
	// recomputed from the stored value.
	var freqWord uint32
	var phaseWord uint16
	if freqChanged {
		freqWord = EncodeFrequency(frequencyHz, d.cfg.ReferenceClockHz)
	} else {
		freqWord = EncodeFrequency(d.state.FrequencyHz, d.cfg.ReferenceClockHz)
	}
	if phaseChanged {
		phaseWord = EncodePhase(phaseRadians)
	} else {
		phaseWord = EncodePhase(d.state.PhaseRadians)
	}

	target := d.state.ActiveBuffer.Other()

	d.mux.Select(ChipDDS)
	d.mux.AssertReset()
	d.bus.SetMode(BusModeWrite)
	d.bus.Delay(d.cfg.SettleCycles)

	d.writeFrame(BuildFrame(freqWord, phaseWord, target))

	d.mux.Deselect()
	d.bus.SetMode(BusModeDuplex)

	// Point the output at the new register set and let the chip run
	d.mux.Select(ChipDDS)
	d.mux.SetLines(bufferLines(target))
	d.bus.Delay(d.cfg.SettleCycles)
	d.mux.Deselect()

	d.state = DeviceState{
		FrequencyHz:  frequencyHz,
		PhaseRadians: phaseRadians,
		ActiveBuffer: target,
		FreqWord:     freqWord,
		PhaseWord:    phaseWord,
	}
	d.updates++

	RecordEvent(EvtDDSProgram, GetTime(), freqWord, uint32(phaseWord))
	if IsDebugEnabled() {
		DebugPrintln("[DDS] program freq=" + utoa(frequencyHz) +
			" freq_word=" + utoa(freqWord) +
			" phase_word=" + utoa(uint32(phaseWord)) +
			" buffer=" + utoa(uint32(target)))
	}
}

// writeFrame clocks f out and waits for the serial engine to drain.
func (d *DDS) writeFrame(f Frame) {
	for _, fb := range f {
		d.bus.Put(fb.Value, fb.Boundary)
	}
	// Bounded by the bus clock and frame length; there is no timeout.
	for d.bus.Busy() {
	}
}

// bufferLines returns the FSELECT/PSELECT levels that make b the output.
func bufferLines(b Buffer) ControlLines {
	if b == BufferB {
		return LineFSelect | LinePSelect
	}
	return 0
}
