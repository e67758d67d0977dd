//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts around timer list updates
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

// lockEvents masks interrupts while the event ring is touched; key presses
// are recorded from the GPIO interrupt.
func lockEvents() interrupt.State {
	return interrupt.Disable()
}

func unlockEvents(state interrupt.State) {
	interrupt.Restore(state)
}
