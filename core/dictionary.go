package core

import (
	"sort"
	"sync"
)

// Constant is a named value published in the dictionary "config" section
type Constant struct {
	Name  string
	Value interface{}
}

// Enumeration maps symbolic names to their index. Empty names are skipped.
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary is the JSON data dictionary the host downloads with identify.
// It describes every message, the firmware constants and the enumerations.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte
}

var globalDictionary = NewDictionary(globalRegistry)

func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       "ddsgen-0.1.0",
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant adds a constant to the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration adds an enumeration to the global dictionary
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cached = nil
}

func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = &Enumeration{Name: name, Values: append([]string(nil), values...)}
	d.cached = nil
}

func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached = nil
}

// BuildDictionary renders and caches the dictionary. Call it once every
// command is registered; later registrations are not picked up until the
// next constant or enumeration change.
func (d *Dictionary) BuildDictionary() {
	// Registry first: never hold both locks
	commands, responses := d.commandReg.Messages()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = d.render(commands, responses)
	DebugPrintln("[DICT] " + itoa(len(d.cached)) + " bytes, " +
		itoa(len(commands)) + " commands, " + itoa(len(responses)) + " responses")
}

// Generate returns the dictionary JSON, building it if needed
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	d.BuildDictionary()
	return d.Generate()
}

// GetChunk returns a copy of up to count bytes starting at offset. Past the
// end it returns an empty chunk, which tells the host the transfer is done.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := min(offset+uint32(count), uint32(len(data)))
	return append([]byte(nil), data[offset:end]...)
}

// render builds the JSON by hand; encoding/json's reflection is too heavy
// for the firmware image. Caller holds d.mu.
func (d *Dictionary) render(commands, responses []*Command) []byte {
	out := make([]byte, 0, 1024)
	out = append(out, `{"version":`...)
	out = appendJSONString(out, d.version)
	out = append(out, `,"build_versions":`...)
	out = appendJSONString(out, d.buildVersions)

	out = append(out, `,"config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendJSONString(out, name)
		out = append(out, ':')
		out = appendJSONString(out, valueToString(d.constants[name].Value))
	}

	out = append(out, `},"commands":`...)
	out = appendMessages(out, commands)
	out = append(out, `,"responses":`...)
	out = appendMessages(out, responses)

	if len(d.enumerations) > 0 {
		out = append(out, `,"enumerations":{`...)
		for i, name := range sortedKeys(d.enumerations) {
			if i > 0 {
				out = append(out, ',')
			}
			out = appendJSONString(out, name)
			out = append(out, ":{"...)
			first := true
			for idx, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					out = append(out, ',')
				}
				first = false
				out = appendJSONString(out, value)
				out = append(out, ':')
				out = appendUint(out, uint64(idx))
			}
			out = append(out, '}')
		}
		out = append(out, '}')
	}
	return append(out, '}')
}

func appendMessages(out []byte, msgs []*Command) []byte {
	out = append(out, '{')
	for i, cmd := range msgs {
		if i > 0 {
			out = append(out, ',')
		}
		out = appendJSONString(out, cmd.Signature())
		out = append(out, ':')
		out = appendUint(out, uint64(cmd.ID))
	}
	return append(out, '}')
}

// appendJSONString appends s as a quoted JSON string
func appendJSONString(out []byte, s string) []byte {
	const hex = "0123456789abcdef"
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			out = append(out, '\\', c)
		case c < 0x20:
			out = append(out, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xF])
		default:
			out = append(out, c)
		}
	}
	return append(out, '"')
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
