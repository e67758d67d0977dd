package core

// Timer frequency of the RP2040 microsecond timer
const (
	TimerFreq = 1000000 // 1MHz
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// GetUptime returns 64-bit uptime in timer ticks
func GetUptime() uint64 {
	return uint64(GetTime())
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerFromMS converts milliseconds to timer ticks
func TimerFromMS(ms uint32) uint32 {
	return uint32(uint64(ms) * TimerFreq / 1000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// ProcessTimers runs every scheduled timer that is due
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
