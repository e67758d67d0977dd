package core

// AD9834 Register Definitions
// Based on AD9834 datasheet Rev. D
// 20 mW Power, 2.3 V to 5.5 V, 75 MHz Complete DDS

// Control register bits (D15:D14 = 00)
const (
	AD9834_CTRL_B28     = 1 << 13 // Two consecutive writes load a full 28-bit frequency word
	AD9834_CTRL_HLB     = 1 << 12 // MSB/LSB select when B28 = 0
	AD9834_CTRL_FSEL    = 1 << 11 // FREQ1 drives the phase accumulator (software select)
	AD9834_CTRL_PSEL    = 1 << 10 // PHASE1 is added to the accumulator output (software select)
	AD9834_CTRL_PIN_SW  = 1 << 9  // FSELECT/PSELECT/RESET/SLEEP come from pins
	AD9834_CTRL_RESET   = 1 << 8  // Internal registers reset to midscale
	AD9834_CTRL_SLEEP1  = 1 << 7  // Internal MCLK disabled
	AD9834_CTRL_SLEEP12 = 1 << 6  // DAC powered down
	AD9834_CTRL_OPBITEN = 1 << 5  // SIGN BIT OUT enable
	AD9834_CTRL_SIGNPIB = 1 << 4  // Comparator output on SIGN BIT OUT
	AD9834_CTRL_DIV2    = 1 << 3  // SIGN BIT OUT is MSB, not MSB/2
	AD9834_CTRL_MODE    = 1 << 1  // Triangle output instead of sine
)

// Register address tags, top bits of the high byte of each 16-bit write
const (
	AD9834_TAG_CONTROL = 0x00 // D15:D14 = 00
	AD9834_TAG_FREQ0   = 0x40 // D15:D14 = 01
	AD9834_TAG_FREQ1   = 0x80 // D15:D14 = 10
	AD9834_TAG_PHASE0  = 0xC0 // D15:D13 = 110
	AD9834_TAG_PHASE1  = 0xE0 // D15:D13 = 111
)

// Register geometry
const (
	AD9834_FREQ_BITS  = 28
	AD9834_PHASE_BITS = 12

	AD9834_FREQ_HALF_BITS  = 14                           // Bits per frequency write in B28 mode
	AD9834_FREQ_HALF_MASK  = 1<<AD9834_FREQ_HALF_BITS - 1 // 0x3FFF
	AD9834_FREQ_MASK       = 1<<AD9834_FREQ_BITS - 1      // 0x0FFFFFFF
	AD9834_PHASE_MASK      = 1<<AD9834_PHASE_BITS - 1     // 0x0FFF
	AD9834_FREQ_DATA_HIGH  = AD9834_FREQ_HALF_MASK >> 8   // 0x3F, data bits in a frequency high byte
	AD9834_PHASE_DATA_HIGH = AD9834_PHASE_MASK >> 8       // 0x0F, data bits in the phase high byte
)

// Default configuration values
const (
	// Maximum MCLK for the AD9834
	AD9834_MCLK_MAX = 75000000 // 75 MHz

	// Configuration written twice during initialisation
	AD9834_CONFIG_RESET   = AD9834_CTRL_B28 | AD9834_CTRL_PIN_SW | AD9834_CTRL_RESET // 0x2300
	AD9834_CONFIG_RUNNING = AD9834_CTRL_B28 | AD9834_CTRL_PIN_SW                     // 0x2200

	// Bus-clock cycles covering the 8 MCLK + 7 ns register propagation delay
	AD9834_SETTLE_CYCLES = 24
)
