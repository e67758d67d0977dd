//go:build linux

package main

import (
	"log"

	"ddsgen/config"
	"ddsgen/panel"
)

type frontPanel struct {
	keypad *panel.Keypad
	entry  *panel.Entry
	blink  *panel.Blinker
	leds   config.LEDConfig
}

func initPanel(cfg *config.MachineConfig, pins *PiGPIO, gen *localGenerator) (*frontPanel, error) {
	rows, cols, err := cfg.KeypadPins()
	if err != nil {
		return nil, err
	}
	kp, err := panel.NewKeypad(pins, rows, cols)
	if err != nil {
		return nil, err
	}
	for _, pin := range kp.RowPins() {
		if err := pins.OnRisingEdge(pin, kp.OnInterrupt); err != nil {
			return nil, err
		}
	}

	blinkPin, err := config.ParsePin(cfg.LEDs.Blink)
	if err != nil {
		return nil, err
	}
	heartPin, err := config.ParsePin(cfg.LEDs.Heartbeat)
	if err != nil {
		return nil, err
	}
	blink, err := panel.NewBlinker(pins, blinkPin, cfg.LEDs.SlowOnMS, cfg.LEDs.SlowOffMS)
	if err != nil {
		return nil, err
	}
	heartbeat, err := panel.NewHeartbeat(pins, heartPin, cfg.LEDs.PulseMS, cfg.LEDs.ShortGapMS, cfg.LEDs.LongGapMS)
	if err != nil {
		return nil, err
	}
	blink.Start()
	heartbeat.Start()

	return &frontPanel{
		keypad: kp,
		entry:  panel.NewEntry(gen.dds.Config().ReferenceClockHz, gen.current()),
		blink:  blink,
		leds:   cfg.LEDs,
	}, nil
}

// poll feeds a latched key to the entry and runs the blink LED fast while
// digits are pending.
func (fp *frontPanel) poll(gen *localGenerator) {
	key, ok := fp.keypad.LastKey()
	if !ok {
		return
	}
	if req, ok := fp.entry.Press(key); ok {
		if err := gen.Program(req.FrequencyHz, req.PhaseRadians); err != nil {
			log.Printf("keypad: %v", err)
		}
	}
	if _, digits := fp.entry.Pending(); digits > 0 {
		fp.blink.SetTiming(fp.leds.FastOnMS, fp.leds.FastOffMS)
	} else {
		fp.blink.SetTiming(fp.leds.SlowOnMS, fp.leds.SlowOffMS)
	}
}
