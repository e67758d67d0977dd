//go:build !tinygo

package core

import "sync"

// State stands in for runtime/interrupt.State on host builds
type State uintptr

// Host builds run the scheduler from a single goroutine; nothing to mask.
func disableInterrupts() State {
	return 0
}

func restoreInterrupts(State) {}

// The event ring is written from GPIO watcher and HTTP goroutines as well as
// the main loop.
var eventMu sync.Mutex

func lockEvents() State {
	eventMu.Lock()
	return 0
}

func unlockEvents(State) {
	eventMu.Unlock()
}
