package core

import (
	"math"
	"testing"

	"ddsgen/protocol"
)

type response struct {
	name string
	args []uint32
}

// commandHarness runs commands through the firmware transport and global
// registry and decodes what comes back.
type commandHarness struct {
	t   *testing.T
	out *protocol.ScratchOutput
	tr  *protocol.Transport
	seq uint8
	dds *DDS
	bus *recordingBus
}

func newCommandHarness(t *testing.T) *commandHarness {
	t.Helper()
	InitCoreCommands()
	bus := newRecordingBus()
	d := NewDDS(bus, DefaultDDSConfig())
	InitDDSCommands(d)

	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, DispatchCommand)
	SetGlobalTransport(tr)
	t.Cleanup(func() {
		SetGlobalTransport(nil)
		SetDDSController(nil)
	})
	return &commandHarness{t: t, out: out, tr: tr, seq: protocol.MessageDest, dds: d, bus: bus}
}

// send encodes name with args as one frame and returns the decoded responses
func (h *commandHarness) send(name string, args ...uint32) []response {
	h.t.Helper()
	cmd, ok := GetGlobalRegistry().GetCommandByName(name)
	if !ok {
		h.t.Fatalf("command %s not registered", name)
	}

	payload := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(payload, uint32(cmd.ID))
	for _, a := range args {
		protocol.EncodeVLQUint(payload, a)
	}
	frame := []byte{byte(len(payload.Result()) + protocol.MessageLengthMin), h.seq}
	frame = append(frame, payload.Result()...)
	crc := protocol.CRC16(frame)
	frame = append(frame, byte(crc>>8), byte(crc), protocol.MessageValueSync)
	h.seq = (h.seq+1)&protocol.MessageSeqMask | protocol.MessageDest

	h.out.Reset()
	h.tr.Receive(protocol.NewSliceInputBuffer(frame))
	return h.decode(h.out.Result())
}

func (h *commandHarness) decode(data []byte) []response {
	var out []response
	for len(data) > 0 {
		n := int(data[protocol.MessagePositionLen])
		body := data[protocol.MessageHeaderSize : n-protocol.MessageTrailerSize]
		data = data[n:]
		if len(body) == 0 {
			continue // ACK
		}

		id, _ := protocol.DecodeVLQUint(&body)
		cmd, _ := GetGlobalRegistry().GetCommand(uint16(id))
		r := response{name: cmd.Name}
		if cmd.Name == "identify_response" {
			offset, _ := protocol.DecodeVLQUint(&body)
			chunk, _ := protocol.DecodeVLQBytes(&body)
			r.args = []uint32{offset, uint32(len(chunk))}
		} else {
			for len(body) > 0 {
				v, _ := protocol.DecodeVLQUint(&body)
				r.args = append(r.args, v)
			}
		}
		out = append(out, r)
	}
	return out
}

func (h *commandHarness) query() []uint32 {
	h.t.Helper()
	resp := h.send("dds_query")
	if len(resp) != 1 || resp[0].name != "dds_state" {
		h.t.Fatalf("dds_query returned %+v", resp)
	}
	return resp[0].args
}

func TestDDSCommandsProgramAndQuery(t *testing.T) {
	h := newCommandHarness(t)

	h.send("dds_init")
	if !h.dds.Initialized() {
		t.Fatal("dds_init did not initialise the controller")
	}

	h.send("dds_program", 1000000, 3141593) // pi in micro-radians
	state := h.query()
	want := []uint32{1000000, 3141593, uint32(BufferB), 3579139, 2048}
	for i := range want {
		if state[i] != want[i] {
			t.Errorf("dds_state = %v, want %v", state, want)
			break
		}
	}
}

func TestDDSCommandsRejectOutOfRange(t *testing.T) {
	h := newCommandHarness(t)
	h.send("dds_init")
	h.bus.reset()

	h.send("dds_program", AD9834_MCLK_MAX, 0)
	h.send("dds_program", 1000, uint32(math.Ceil(2*math.Pi*PhaseMicroRadians)))
	if len(h.bus.frames) != 0 {
		t.Errorf("out of range requests reached the bus: %x", h.bus.frames)
	}

	maxPhase := 2 * math.Pi * PhaseMicroRadians
	h.send("dds_program", AD9834_MCLK_MAX-1, uint32(maxPhase))
	if len(h.bus.frames) != 3 {
		t.Errorf("largest valid request not programmed: %d writes", len(h.bus.frames))
	}
}

func TestDDSCommandHandlers(t *testing.T) {
	newCommandHarness(t)

	data := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(data, AD9834_MCLK_MAX)
	protocol.EncodeVLQUint(data, 0)
	raw := data.Result()
	if err := handleDDSProgram(&raw); err != ErrFrequencyRange {
		t.Errorf("expected ErrFrequencyRange, got %v", err)
	}

	data.Reset()
	protocol.EncodeVLQUint(data, 0)
	protocol.EncodeVLQUint(data, 7000000)
	raw = data.Result()
	if err := handleDDSProgram(&raw); err != ErrPhaseRange {
		t.Errorf("expected ErrPhaseRange, got %v", err)
	}

	SetDDSController(nil)
	if err := handleDDSInit(nil); err != ErrNoController {
		t.Errorf("expected ErrNoController, got %v", err)
	}
	if err := handleDDSQuery(nil); err != ErrNoController {
		t.Errorf("expected ErrNoController, got %v", err)
	}
}

func TestCoreCommands(t *testing.T) {
	h := newCommandHarness(t)
	SetTime(123456)

	resp := h.send("get_clock")
	if len(resp) != 1 || resp[0].name != "clock" || resp[0].args[0] != 123456 {
		t.Errorf("get_clock = %+v", resp)
	}

	resp = h.send("get_uptime")
	if len(resp) != 1 || resp[0].name != "uptime" || resp[0].args[0] != 0 || resp[0].args[1] != 123456 {
		t.Errorf("get_uptime = %+v", resp)
	}

	resp = h.send("get_config")
	if len(resp) != 1 || resp[0].args[0] != 0 {
		t.Errorf("get_config before init = %+v", resp)
	}

	h.send("dds_init")
	h.send("dds_program", 440, 0)
	resp = h.send("get_config")
	if len(resp) != 1 || resp[0].name != "config" || resp[0].args[0] != 1 || resp[0].args[1] != 1 {
		t.Errorf("get_config after program = %+v", resp)
	}
}

func TestIdentifyServesDictionary(t *testing.T) {
	h := newCommandHarness(t)
	GetGlobalDictionary().BuildDictionary()
	size := len(GetGlobalDictionary().Generate())

	resp := h.send("identify", 0, 40)
	if len(resp) != 1 || resp[0].name != "identify_response" {
		t.Fatalf("identify = %+v", resp)
	}
	if resp[0].args[0] != 0 || resp[0].args[1] != 40 {
		t.Errorf("identify_response offset=%d len=%d", resp[0].args[0], resp[0].args[1])
	}

	resp = h.send("identify", uint32(size), 40)
	if resp[0].args[1] != 0 {
		t.Errorf("identify past the end returned %d bytes", resp[0].args[1])
	}
}

func TestResetIsDeferred(t *testing.T) {
	h := newCommandHarness(t)
	resets := 0
	SetResetHandler(func() { resets++ })
	defer SetResetHandler(nil)

	h.send("reset")
	if resets != 0 {
		t.Error("reset ran before the main loop polled it")
	}
	if !CheckPendingReset() || resets != 1 {
		t.Errorf("CheckPendingReset did not run the handler (resets=%d)", resets)
	}
	if CheckPendingReset() {
		t.Error("reset request should be consumed")
	}
}

func TestDDSStateFieldsAreIntegers(t *testing.T) {
	newCommandHarness(t)

	resp, ok := GetGlobalRegistry().GetCommandByName("dds_state")
	if !ok {
		t.Fatal("dds_state not registered")
	}
	want := "freq=%u phase=%u buffer=%u freq_word=%u phase_word=%u"
	if resp.Format != want {
		t.Errorf("dds_state format %q, want %q", resp.Format, want)
	}
}
