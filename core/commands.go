package core

import (
	"sync/atomic"

	"ddsgen/protocol"
)

// InitCoreCommands registers the link-level commands. identify_response and
// identify must stay at IDs 0 and 1: the host bootstraps with those IDs
// before it has the dictionary.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")       // ID 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // ID 1

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("reset", "", handleReset)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c updates=%u")

	RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
	GetGlobalDictionary().SetVersion(protocol.Version)
}

func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetUptime(data *[]byte) error {
	uptime := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

func handleGetClock(data *[]byte) error {
	clock := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

// handleGetConfig reports whether the generator has been initialised and
// how many tuning updates it has applied since.
func handleGetConfig(data *[]byte) error {
	var isConfig, updates uint32
	if ctrl := ddsController; ctrl != nil && ctrl.Initialized() {
		isConfig = 1
		updates = ctrl.Updates()
	}
	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, isConfig)
		protocol.EncodeVLQUint(output, updates)
	})
	return nil
}

// Global transport for sending responses (set by main)
var globalTransport *protocol.Transport

func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// SendResponse encodes a registered response on the global transport.
// Without a transport it does nothing.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		panic("response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

var (
	globalResetHandler func()
	resetPending       atomic.Bool
)

// SetResetHandler installs the platform reset (the RP2040 uses the watchdog)
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// handleReset only flags the request; the main loop resets once the ACK
// has been flushed.
func handleReset(_ *[]byte) error {
	resetPending.Store(true)
	return nil
}

// CheckPendingReset runs the reset handler if the host asked for a reset
func CheckPendingReset() bool {
	if !resetPending.Load() {
		return false
	}
	resetPending.Store(false)
	if globalResetHandler != nil {
		globalResetHandler()
	}
	return true
}
