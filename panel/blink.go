package panel

import "ddsgen/core"

// Blinker toggles an LED with fixed on and off times from the core timer
// scheduler, so the main loop never sleeps.
type Blinker struct {
	Timer core.Timer

	gpio     core.GPIODriver
	pin      core.GPIOPin
	on       bool
	onTicks  uint32
	offTicks uint32
}

// NewBlinker configures pin as an output, initially off
func NewBlinker(gpio core.GPIODriver, pin core.GPIOPin, onMS, offMS uint32) (*Blinker, error) {
	if err := gpio.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	b := &Blinker{
		gpio:     gpio,
		pin:      pin,
		onTicks:  core.TimerFromMS(onMS),
		offTicks: core.TimerFromMS(offMS),
	}
	b.Timer.Handler = b.toggle
	if err := gpio.SetPin(pin, false); err != nil {
		return nil, err
	}
	return b, nil
}

// Start schedules the first switch-on after one off period
func (b *Blinker) Start() {
	core.CancelTimer(&b.Timer)
	b.Timer.WakeTime = core.GetTime() + b.offTicks
	core.ScheduleTimer(&b.Timer)
}

// Stop cancels the schedule and turns the LED off
func (b *Blinker) Stop() {
	core.CancelTimer(&b.Timer)
	b.set(false)
}

// SetTiming changes the on and off times from the next transition
func (b *Blinker) SetTiming(onMS, offMS uint32) {
	b.onTicks = core.TimerFromMS(onMS)
	b.offTicks = core.TimerFromMS(offMS)
}

// On reports the LED state
func (b *Blinker) On() bool {
	return b.on
}

func (b *Blinker) toggle(t *core.Timer) uint8 {
	b.set(!b.on)
	if b.on {
		t.WakeTime += b.onTicks
	} else {
		t.WakeTime += b.offTicks
	}
	return core.SF_RESCHEDULE
}

func (b *Blinker) set(on bool) {
	b.on = on
	_ = b.gpio.SetPin(b.pin, on)
}

// Heartbeat flashes an LED twice per period: pulse, short gap, pulse, long gap.
type Heartbeat struct {
	Timer core.Timer

	gpio     core.GPIODriver
	pin      core.GPIOPin
	on       bool
	pulse    uint8 // pulses shown in the current period
	pulseT   uint32
	shortGap uint32
	longGap  uint32
}

// NewHeartbeat configures pin as an output, initially off
func NewHeartbeat(gpio core.GPIODriver, pin core.GPIOPin, pulseMS, shortGapMS, longGapMS uint32) (*Heartbeat, error) {
	if err := gpio.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	h := &Heartbeat{
		gpio:     gpio,
		pin:      pin,
		pulseT:   core.TimerFromMS(pulseMS),
		shortGap: core.TimerFromMS(shortGapMS),
		longGap:  core.TimerFromMS(longGapMS),
	}
	h.Timer.Handler = h.beat
	if err := gpio.SetPin(pin, false); err != nil {
		return nil, err
	}
	return h, nil
}

// Start schedules the first pulse after one long gap
func (h *Heartbeat) Start() {
	core.CancelTimer(&h.Timer)
	h.pulse = 0
	h.Timer.WakeTime = core.GetTime() + h.longGap
	core.ScheduleTimer(&h.Timer)
}

func (h *Heartbeat) Stop() {
	core.CancelTimer(&h.Timer)
	h.on = false
	_ = h.gpio.SetPin(h.pin, false)
}

func (h *Heartbeat) On() bool {
	return h.on
}

func (h *Heartbeat) beat(t *core.Timer) uint8 {
	h.on = !h.on
	_ = h.gpio.SetPin(h.pin, h.on)

	switch {
	case h.on:
		h.pulse++
		t.WakeTime += h.pulseT
	case h.pulse == 1:
		t.WakeTime += h.shortGap
	default:
		h.pulse = 0
		t.WakeTime += h.longGap
	}
	return core.SF_RESCHEDULE
}
