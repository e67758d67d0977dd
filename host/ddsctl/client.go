// Package ddsctl is the host side of the generator link: it fetches the
// firmware dictionary and sends tuning commands by name.
package ddsctl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"ddsgen/core"
	"ddsgen/protocol"
)

// Commands the firmware always places at fixed IDs
const (
	identifyResponseID = 0
	identifyID         = 1

	identifyChunk = 40
)

const DefaultResponseTimeout = time.Second

var (
	ErrNoDictionary   = errors.New("dictionary not loaded")
	ErrFrequencyRange = core.ErrFrequencyRange
	ErrPhaseRange     = core.ErrPhaseRange
)

// Dictionary is the parsed identify data. Commands and Responses map the
// full message signature ("dds_program freq=%u phase=%u") to its ID.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// Constant returns a config entry as an integer
func (d *Dictionary) Constant(name string) (uint32, bool) {
	s, ok := d.Config[name]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// State is a decoded dds_state response
type State struct {
	FrequencyHz  uint32
	PhaseRadians float64
	Buffer       uint8
	FreqWord     uint32
	PhaseWord    uint32
}

// Status is a decoded config response
type Status struct {
	Initialized bool
	Updates     uint32
}

// Client talks to one generator. Methods are safe for concurrent use; each
// request holds the link until its response arrives.
type Client struct {
	transport *protocol.HostTransport
	timeout   time.Duration

	mu        sync.Mutex
	dict      *Dictionary
	raw       []byte
	commands  map[string]uint16
	responses map[string]uint16
	refClock  uint32
}

// NewClient wraps an open port. Call Connect before sending commands.
func NewClient(port io.ReadWriteCloser) *Client {
	return &Client{
		transport: protocol.NewHostTransport(port),
		timeout:   DefaultResponseTimeout,
	}
}

// SetTimeout changes how long requests wait for their response
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *Client) Close() error {
	return c.transport.Close()
}

// Connect downloads the dictionary with identify and indexes its messages
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var raw bytes.Buffer
	for offset := uint32(0); ; {
		chunk, err := c.identify(offset)
		if err != nil {
			return fmt.Errorf("identify at offset %d: %w", offset, err)
		}
		raw.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < identifyChunk {
			break
		}
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(raw.Bytes(), dict); err != nil {
		return fmt.Errorf("parse dictionary: %w", err)
	}
	c.raw = raw.Bytes()
	c.dict = dict
	c.commands = indexMessages(dict.Commands)
	c.responses = indexMessages(dict.Responses)
	c.refClock, _ = dict.Constant("DDS_REF_CLOCK")
	return nil
}

func (c *Client) identify(offset uint32) ([]byte, error) {
	err := c.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, identifyChunk)
	})
	if err != nil {
		return nil, err
	}

	payload, err := c.awaitResponse(identifyResponseID)
	if err != nil {
		return nil, err
	}
	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, err
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: sent %d, got %d", offset, respOffset)
	}
	return protocol.DecodeVLQBytes(&payload)
}

// indexMessages maps message names to IDs
func indexMessages(msgs map[string]int) map[string]uint16 {
	out := make(map[string]uint16, len(msgs))
	for sig, id := range msgs {
		name, _, _ := strings.Cut(sig, " ")
		out[name] = uint16(id)
	}
	return out
}

// Dictionary returns the parsed dictionary, or nil before Connect
func (c *Client) Dictionary() *Dictionary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dict
}

// RawDictionary returns the dictionary JSON as sent by the firmware
func (c *Client) RawDictionary() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw
}

// ReferenceClock returns DDS_REF_CLOCK from the dictionary
func (c *Client) ReferenceClock() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refClock
}

// Init resets the generator to 0 Hz and zero phase
func (c *Client) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send("dds_init", nil)
}

// Program tunes the generator. Values the firmware would reject are caught
// here, since it drops bad commands without a reply.
func (c *Client) Program(frequencyHz uint32, phaseRadians float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refClock != 0 && frequencyHz >= c.refClock {
		return fmt.Errorf("%w: %d Hz (reference %d Hz)", ErrFrequencyRange, frequencyHz, c.refClock)
	}
	if phaseRadians < 0 || phaseRadians >= 2*math.Pi || math.IsNaN(phaseRadians) {
		return fmt.Errorf("%w: %g rad", ErrPhaseRange, phaseRadians)
	}
	phase := uint32(math.Round(phaseRadians * core.PhaseMicroRadians))

	return c.send("dds_program", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, frequencyHz)
		protocol.EncodeVLQUint(output, phase)
	})
}

// State queries the tuning currently applied
func (c *Client) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var st State
	payload, err := c.request("dds_query", "dds_state")
	if err != nil {
		return st, err
	}

	var v [5]uint32
	for i := range v {
		if v[i], err = protocol.DecodeVLQUint(&payload); err != nil {
			return st, fmt.Errorf("decode dds_state: %w", err)
		}
	}
	st.FrequencyHz = v[0]
	st.PhaseRadians = float64(v[1]) / core.PhaseMicroRadians
	st.Buffer = uint8(v[2])
	st.FreqWord = v[3]
	st.PhaseWord = v[4]
	return st, nil
}

// Status reports whether the generator was initialised and how many updates
// it has applied.
func (c *Client) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.request("get_config", "config")
	if err != nil {
		return Status{}, err
	}
	isConfig, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return Status{}, err
	}
	updates, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return Status{}, err
	}
	return Status{Initialized: isConfig != 0, Updates: updates}, nil
}

// Clock returns the firmware timer
func (c *Client) Clock() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.request("get_clock", "clock")
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQUint(&payload)
}

// Reset asks the firmware to reboot and restarts the link sequence
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("reset", nil); err != nil {
		return err
	}
	c.transport.Reset()
	return nil
}

// Caller holds c.mu
func (c *Client) send(name string, args func(output protocol.OutputBuffer)) error {
	if c.dict == nil {
		return ErrNoDictionary
	}
	id, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("firmware has no command %q", name)
	}
	if err := c.transport.SendCommand(id, args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// request sends a command without arguments and returns the arguments of
// the named response. Caller holds c.mu.
func (c *Client) request(command, response string) ([]byte, error) {
	if c.dict == nil {
		return nil, ErrNoDictionary
	}
	respID, ok := c.responses[response]
	if !ok {
		return nil, fmt.Errorf("firmware has no response %q", response)
	}
	if err := c.send(command, nil); err != nil {
		return nil, err
	}
	return c.awaitResponse(respID)
}

// awaitResponse skips queued messages until one with respID arrives and
// returns its payload after the ID.
func (c *Client) awaitResponse(respID uint16) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no response %d within %v", respID, c.timeout)
		}
		msg, err := c.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}
		payload := msg.Payload
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil || uint16(id) != respID {
			continue
		}
		return payload, nil
	}
}
