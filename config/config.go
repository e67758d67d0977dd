// Package config holds the board description of the waveform generator:
// the DDS reference constants, which GPIOs form the shared serial bus, and
// the front panel wiring.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ddsgen/core"
)

// MachineConfig is the top-level board configuration
type MachineConfig struct {
	Generator DDSConfig    `json:"dds"`
	Bus       BusConfig    `json:"bus"`
	Keypad    KeypadConfig `json:"keypad"`
	LEDs      LEDConfig    `json:"leds"`
	Debug     bool         `json:"debug"`
}

// DDSConfig describes the AD9834 and the tuning applied at boot
type DDSConfig struct {
	ReferenceClockHz uint32  `json:"ref_clock_hz"`
	SettleCycles     uint32  `json:"settle_cycles"`
	StartFrequencyHz uint32  `json:"start_frequency_hz"`
	StartPhaseDeg    float64 `json:"start_phase_deg"`
}

// BusConfig assigns pins to the multiplexed serial bus
type BusConfig struct {
	SPIFrequency uint32   `json:"spi_hz"`
	SPIMode      uint8    `json:"spi_mode"`
	SCK          string   `json:"sck"`
	SDO          string   `json:"sdo"`
	SDI          string   `json:"sdi"`
	Address      []string `json:"address"` // Decoder inputs, LSB first
	FrameSync    string   `json:"frame_sync"`
	Reset        string   `json:"reset"`
	Sleep        string   `json:"sleep"`
	FSelect      string   `json:"fselect"`
	PSelect      string   `json:"pselect"`
}

// KeypadConfig wires the 4x4 matrix keypad. Rows are inputs, columns outputs.
type KeypadConfig struct {
	Rows []string `json:"rows"`
	Cols []string `json:"cols"`
}

// LEDConfig sets the status LED pins and their blink timings in milliseconds
type LEDConfig struct {
	Blink      string `json:"blink"`
	Heartbeat  string `json:"heartbeat"`
	SlowOnMS   uint32 `json:"slow_on_ms"`
	SlowOffMS  uint32 `json:"slow_off_ms"`
	FastOnMS   uint32 `json:"fast_on_ms"`
	FastOffMS  uint32 `json:"fast_off_ms"`
	PulseMS    uint32 `json:"pulse_ms"`
	ShortGapMS uint32 `json:"short_gap_ms"`
	LongGapMS  uint32 `json:"long_gap_ms"`
}

// LoadConfig parses a JSON configuration over DefaultConfig, so omitted keys
// keep their defaults, then repairs zero values and validates the result.
func LoadConfig(jsonData []byte) (*MachineConfig, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults replaces values given explicitly as zero or empty where zero
// is never meaningful.
func applyDefaults(cfg *MachineConfig) {
	def := DefaultConfig()

	if cfg.Generator.ReferenceClockHz == 0 {
		cfg.Generator.ReferenceClockHz = def.Generator.ReferenceClockHz
	}
	if cfg.Generator.SettleCycles == 0 {
		cfg.Generator.SettleCycles = def.Generator.SettleCycles
	}

	bus := &cfg.Bus
	if bus.SPIFrequency == 0 {
		bus.SPIFrequency = def.Bus.SPIFrequency
	}
	defaultPin(&bus.SCK, def.Bus.SCK)
	defaultPin(&bus.SDO, def.Bus.SDO)
	defaultPin(&bus.SDI, def.Bus.SDI)
	defaultPin(&bus.FrameSync, def.Bus.FrameSync)
	defaultPin(&bus.Reset, def.Bus.Reset)
	defaultPin(&bus.Sleep, def.Bus.Sleep)
	defaultPin(&bus.FSelect, def.Bus.FSelect)
	defaultPin(&bus.PSelect, def.Bus.PSelect)
	if len(bus.Address) == 0 {
		bus.Address = def.Bus.Address
	}

	if len(cfg.Keypad.Rows) == 0 {
		cfg.Keypad.Rows = def.Keypad.Rows
	}
	if len(cfg.Keypad.Cols) == 0 {
		cfg.Keypad.Cols = def.Keypad.Cols
	}

	leds := &cfg.LEDs
	defaultPin(&leds.Blink, def.LEDs.Blink)
	defaultPin(&leds.Heartbeat, def.LEDs.Heartbeat)
	defaultMS(&leds.SlowOnMS, def.LEDs.SlowOnMS)
	defaultMS(&leds.SlowOffMS, def.LEDs.SlowOffMS)
	defaultMS(&leds.FastOnMS, def.LEDs.FastOnMS)
	defaultMS(&leds.FastOffMS, def.LEDs.FastOffMS)
	defaultMS(&leds.PulseMS, def.LEDs.PulseMS)
	defaultMS(&leds.ShortGapMS, def.LEDs.ShortGapMS)
	defaultMS(&leds.LongGapMS, def.LEDs.LongGapMS)
}

func defaultPin(pin *string, def string) {
	if *pin == "" {
		*pin = def
	}
}

func defaultMS(ms *uint32, def uint32) {
	if *ms == 0 {
		*ms = def
	}
}

// DefaultConfig returns the reference board: a 75 MHz AD9834 behind a
// 3-bit address decoder on SPI0, keypad on GPIO 2-9.
func DefaultConfig() *MachineConfig {
	return &MachineConfig{
		Generator: DDSConfig{
			ReferenceClockHz: core.AD9834_MCLK_MAX,
			SettleCycles:     core.AD9834_SETTLE_CYCLES,
		},
		Bus: BusConfig{
			SPIFrequency: 4000000,
			SPIMode:      2, // AD9834 latches data on the falling SCLK edge
			SCK:          "gpio18",
			SDO:          "gpio19",
			SDI:          "gpio16",
			Address:      []string{"gpio10", "gpio11", "gpio12"},
			FrameSync:    "gpio17",
			Reset:        "gpio20",
			Sleep:        "gpio21",
			FSelect:      "gpio22",
			PSelect:      "gpio26",
		},
		Keypad: KeypadConfig{
			Rows: []string{"gpio2", "gpio3", "gpio4", "gpio5"},
			Cols: []string{"gpio6", "gpio7", "gpio8", "gpio9"},
		},
		LEDs: LEDConfig{
			Blink:      "gpio25",
			Heartbeat:  "gpio15",
			SlowOnMS:   750,
			SlowOffMS:  750,
			FastOnMS:   250,
			FastOffMS:  750,
			PulseMS:    100,
			ShortGapMS: 100,
			LongGapMS:  700,
		},
	}
}

// Validate checks pin names and the limits of the DDS settings
func (c *MachineConfig) Validate() error {
	if c.Generator.ReferenceClockHz == 0 || c.Generator.ReferenceClockHz > core.AD9834_MCLK_MAX {
		return fmt.Errorf("dds: ref_clock_hz %d outside 1..%d", c.Generator.ReferenceClockHz, core.AD9834_MCLK_MAX)
	}
	if c.Generator.StartFrequencyHz >= c.Generator.ReferenceClockHz {
		return fmt.Errorf("dds: start_frequency_hz %d must be below the reference clock", c.Generator.StartFrequencyHz)
	}
	if c.Generator.StartPhaseDeg < 0 || c.Generator.StartPhaseDeg >= 360 {
		return fmt.Errorf("dds: start_phase_deg %g outside [0, 360)", c.Generator.StartPhaseDeg)
	}
	if c.Bus.SPIMode > 3 {
		return fmt.Errorf("bus: spi_mode %d", c.Bus.SPIMode)
	}
	if len(c.Bus.Address) == 0 || len(c.Bus.Address) > 8 {
		return fmt.Errorf("bus: %d address lines", len(c.Bus.Address))
	}
	if len(c.Keypad.Rows) != 4 || len(c.Keypad.Cols) != 4 {
		return fmt.Errorf("keypad: need 4 rows and 4 columns, got %d and %d", len(c.Keypad.Rows), len(c.Keypad.Cols))
	}
	if _, err := c.PinBus(); err != nil {
		return err
	}
	if _, _, err := c.KeypadPins(); err != nil {
		return err
	}
	for _, name := range []string{c.Bus.SCK, c.Bus.SDO, c.Bus.SDI, c.LEDs.Blink, c.LEDs.Heartbeat} {
		if _, err := ParsePin(name); err != nil {
			return err
		}
	}
	return nil
}

// DDS returns the controller constants
func (c *MachineConfig) DDS() core.DDSConfig {
	return core.DDSConfig{
		ReferenceClockHz: c.Generator.ReferenceClockHz,
		SettleCycles:     c.Generator.SettleCycles,
	}
}

// PinBus resolves the bus pin names
func (c *MachineConfig) PinBus() (core.PinBusConfig, error) {
	b := c.Bus
	cfg := core.PinBusConfig{Rate: b.SPIFrequency}

	var err error
	if cfg.Address, err = parsePins(b.Address); err != nil {
		return cfg, err
	}
	for _, p := range []struct {
		dst  *core.GPIOPin
		name string
	}{
		{&cfg.FrameSync, b.FrameSync},
		{&cfg.Reset, b.Reset},
		{&cfg.Sleep, b.Sleep},
		{&cfg.FSelect, b.FSelect},
		{&cfg.PSelect, b.PSelect},
	} {
		if *p.dst, err = ParsePin(p.name); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// KeypadPins resolves the keypad row and column pins
func (c *MachineConfig) KeypadPins() (rows, cols []core.GPIOPin, err error) {
	if rows, err = parsePins(c.Keypad.Rows); err != nil {
		return nil, nil, err
	}
	if cols, err = parsePins(c.Keypad.Cols); err != nil {
		return nil, nil, err
	}
	return rows, cols, nil
}

// ParsePin converts "gpio17" (or "GP17", or "17") to a pin number
func ParsePin(name string) (core.GPIOPin, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "gpio"), "gp")
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 29 {
		return 0, fmt.Errorf("invalid pin %q", name)
	}
	return core.GPIOPin(n), nil
}

func parsePins(names []string) ([]core.GPIOPin, error) {
	pins := make([]core.GPIOPin, len(names))
	for i, name := range names {
		p, err := ParsePin(name)
		if err != nil {
			return nil, err
		}
		pins[i] = p
	}
	return pins, nil
}
