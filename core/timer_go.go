//go:build !tinygo

package core

import "sync/atomic"

// Host builds have no hardware timer; the clock only moves when tests or the
// host loop call SetTime. GPIO watcher and HTTP goroutines read it.
var systemTicks atomic.Uint32

func getSystemTicks() uint32 {
	return systemTicks.Load()
}

func setSystemTicks(ticks uint32) {
	systemTicks.Store(ticks)
}
