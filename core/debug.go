package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures a bus-relevant event for post-mortem analysis
type Event struct {
	Type   uint8  // Event type code
	Clock  uint32 // System clock at event
	Value1 uint32 // Context-dependent value (frequency word)
	Value2 uint32 // Context-dependent value (phase word)
}

// Event type codes
const (
	EvtDDSInit    = 1 // Initialisation sequence finished
	EvtDDSProgram = 2 // Tuning frame written, buffers flipped
	EvtDDSSkip    = 3 // Program call with unchanged tuning
	EvtKeyPress   = 4 // Keypad key latched (Value1 = key)
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool

	eventRing     [EventRingSize]Event
	eventRingHead uint8
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent stores an event in the ring buffer, overwriting the oldest.
func RecordEvent(eventType uint8, clock, value1, value2 uint32) {
	state := lockEvents()
	defer unlockEvents(state)

	idx := eventRingHead
	eventRing[idx] = Event{
		Type:   eventType,
		Clock:  clock,
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events from oldest to newest.
func Events() []Event {
	state := lockEvents()
	defer unlockEvents(state)

	out := make([]Event, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(eventRingHead+i)%EventRingSize]
		if evt.Type != 0 {
			out = append(out, evt)
		}
	}
	return out
}

// DumpEventRing writes the event ring through the debug writer regardless
// of the enabled flag (call on shutdown/error).
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENTS] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] " + eventName(evt.Type) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	state := lockEvents()
	defer unlockEvents(state)

	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
}

func eventName(t uint8) string {
	switch t {
	case EvtDDSInit:
		return "DDS_INIT"
	case EvtDDSProgram:
		return "DDS_PROGRAM"
	case EvtDDSSkip:
		return "DDS_SKIP"
	case EvtKeyPress:
		return "KEY"
	default:
		return "UNKNOWN"
	}
}
