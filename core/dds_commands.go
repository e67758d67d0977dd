package core

import (
	"errors"
	"math"

	"ddsgen/protocol"
)

// Phase travels on the wire as an unsigned count of micro-radians
const PhaseMicroRadians = 1e6

var (
	ErrFrequencyRange = errors.New("frequency must be below the reference clock")
	ErrPhaseRange     = errors.New("phase must be below 2*pi")
	ErrNoController   = errors.New("dds controller not configured")
)

var ddsController *DDS

// SetDDSController selects the controller the dds_* commands act on
func SetDDSController(ctrl *DDS) {
	ddsController = ctrl
}

// InitDDSCommands registers the generator commands and publishes the
// reference constants and the bus chip names in the dictionary.
func InitDDSCommands(ctrl *DDS) {
	SetDDSController(ctrl)

	RegisterCommand("dds_init", "", handleDDSInit)
	RegisterCommand("dds_program", "freq=%u phase=%u", handleDDSProgram)
	RegisterCommand("dds_query", "", handleDDSQuery)
	RegisterResponse("dds_state", "freq=%u phase=%u buffer=%u freq_word=%u phase_word=%u")

	RegisterConstant("DDS_REF_CLOCK", ctrl.Config().ReferenceClockHz)
	RegisterConstant("DDS_FREQ_BITS", uint32(AD9834_FREQ_BITS))
	RegisterConstant("DDS_PHASE_BITS", uint32(AD9834_PHASE_BITS))
	RegisterEnumeration("chip", ChipNames)
}

func handleDDSInit(data *[]byte) error {
	if ddsController == nil {
		return ErrNoController
	}
	ddsController.Init()
	return nil
}

// handleDDSProgram: dds_program freq=%u phase=%u
func handleDDSProgram(data *[]byte) error {
	freq, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	phase, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	ctrl := ddsController
	if ctrl == nil {
		return ErrNoController
	}
	if freq >= ctrl.Config().ReferenceClockHz {
		DebugPrintln("[DDS] rejected freq=" + utoa(freq))
		return ErrFrequencyRange
	}
	radians := float64(phase) / PhaseMicroRadians
	if radians >= 2*math.Pi {
		DebugPrintln("[DDS] rejected phase=" + utoa(phase))
		return ErrPhaseRange
	}

	ctrl.Program(freq, radians)
	return nil
}

func handleDDSQuery(data *[]byte) error {
	if ddsController == nil {
		return ErrNoController
	}
	st := ddsController.State()
	SendResponse("dds_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, st.FrequencyHz)
		protocol.EncodeVLQUint(output, uint32(math.Round(st.PhaseRadians*PhaseMicroRadians)))
		protocol.EncodeVLQUint(output, uint32(st.ActiveBuffer))
		protocol.EncodeVLQUint(output, st.FreqWord)
		protocol.EncodeVLQUint(output, uint32(st.PhaseWord))
	})
	return nil
}
