package main

import (
	"math"
	"sync"

	"ddsgen/core"
	"ddsgen/host/ddsctl"
	"ddsgen/panel"
)

// localGenerator serialises access to a DDS wired straight to this board,
// for the websocket bridge and the keypad loop. It applies the same limits
// as the dds_program command.
type localGenerator struct {
	mu  sync.Mutex
	dds *core.DDS
}

func (g *localGenerator) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dds.Init()
	return nil
}

func (g *localGenerator) Program(frequencyHz uint32, phaseRadians float64) error {
	if frequencyHz >= g.dds.Config().ReferenceClockHz {
		return core.ErrFrequencyRange
	}
	if !(phaseRadians >= 0 && phaseRadians < 2*math.Pi) {
		return core.ErrPhaseRange
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.dds.Program(frequencyHz, phaseRadians)
	return nil
}

func (g *localGenerator) State() (ddsctl.State, error) {
	g.mu.Lock()
	st := g.dds.State()
	g.mu.Unlock()

	return ddsctl.State{
		FrequencyHz:  st.FrequencyHz,
		PhaseRadians: st.PhaseRadians,
		Buffer:       uint8(st.ActiveBuffer),
		FreqWord:     st.FreqWord,
		PhaseWord:    uint32(st.PhaseWord),
	}, nil
}

// current returns the tuning as a keypad entry starting point
func (g *localGenerator) current() panel.TuningRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.dds.State()
	return panel.TuningRequest{FrequencyHz: st.FrequencyHz, PhaseRadians: st.PhaseRadians}
}
