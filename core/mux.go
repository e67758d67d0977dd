package core

// ChipAddress is a chip-select code on the shared bus address decoder
type ChipAddress uint8

// Devices on the shared bus. ChipNone drives the decoder's unused output and
// is the idle state between transactions.
const (
	ChipDDS        ChipAddress = 0 // AD9834 waveform generator
	ChipGainTrimA  ChipAddress = 1 // VGA gain trim, channel A
	ChipGainTrimB  ChipAddress = 2 // VGA gain trim, channel B
	ChipOutputPotA ChipAddress = 3 // Output gain potentiometer A
	ChipOutputPotB ChipAddress = 4 // Output gain potentiometer B
	ChipBiasDAC    ChipAddress = 5 // Output bias trim DAC
	ChipNone       ChipAddress = 7 // All deselected
)

// ChipNames lists the dictionary names of each address code
var ChipNames = []string{
	ChipDDS:        "dds",
	ChipGainTrimA:  "gain_trim_a",
	ChipGainTrimB:  "gain_trim_b",
	ChipOutputPotA: "output_pot_a",
	ChipOutputPotB: "output_pot_b",
	ChipBiasDAC:    "bias_dac",
	ChipNone:       "none",
}

func (c ChipAddress) String() string {
	if int(c) < len(ChipNames) && ChipNames[c] != "" {
		return ChipNames[c]
	}
	return "chip" + utoa(uint32(c))
}

// Multiplexer owns the address and control lines of a SerialBus.
//
// At most one device is selected at a time; Select while another device is
// held panics. The DDS reset line may only change while the DDS is selected.
type Multiplexer struct {
	bus      SerialBus
	selected ChipAddress
	lines    ControlLines
}

// NewMultiplexer creates a multiplexer, parks the bus on ChipNone and
// drives every control line low.
func NewMultiplexer(bus SerialBus) *Multiplexer {
	m := &Multiplexer{bus: bus, selected: ChipNone}
	bus.SelectChip(uint8(ChipNone))
	bus.SetControl(0)
	return m
}

// Select asserts addr on the address lines.
func (m *Multiplexer) Select(addr ChipAddress) {
	if addr == ChipNone {
		m.Deselect()
		return
	}
	if m.selected != ChipNone {
		panic("mux: " + addr.String() + " selected while " + m.selected.String() + " holds the bus")
	}
	m.selected = addr
	m.bus.SelectChip(uint8(addr))
}

// Deselect returns the address lines to ChipNone.
func (m *Multiplexer) Deselect() {
	m.selected = ChipNone
	m.bus.SelectChip(uint8(ChipNone))
}

// Selected returns the currently asserted address.
func (m *Multiplexer) Selected() ChipAddress {
	return m.selected
}

// Lines returns the latched control line state.
func (m *Multiplexer) Lines() ControlLines {
	return m.lines
}

// SetLines drives the control lines. Changing LineReset requires the DDS to
// be selected.
func (m *Multiplexer) SetLines(lines ControlLines) {
	if (lines^m.lines)&LineReset != 0 && m.selected != ChipDDS {
		panic("mux: DDS reset changed while " + m.selected.String() + " is selected")
	}
	m.lines = lines
	m.bus.SetControl(lines)
}

// AssertReset holds the DDS in hardware reset.
func (m *Multiplexer) AssertReset() {
	m.SetLines(m.lines | LineReset)
}

// ReleaseReset lets the DDS run.
func (m *Multiplexer) ReleaseReset() {
	m.SetLines(m.lines &^ LineReset)
}
