package core

import (
	"errors"
	"sync"
)

// ErrUnknownCommand is returned by Dispatch for an unregistered ID
var ErrUnknownCommand = errors.New("unknown command")

// CommandHandler decodes its own arguments from the front of data
type CommandHandler func(data *[]byte) error

// Command is one entry of the message dictionary. Responses (MCU to host)
// have a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "freq=%u phase=%u"
	Handler CommandHandler
}

// Signature is the dictionary key for the command: its name followed by the
// format string.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// CommandRegistry assigns IDs to messages in registration order
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	byName   map[string]*Command
}

var globalRegistry = NewCommandRegistry()

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{byName: make(map[string]*Command)}
}

// RegisterCommand adds a host-to-MCU command to the global registry
func RegisterCommand(name, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse adds an MCU-to-host message to the global registry
func RegisterResponse(name, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a message and returns its ID. Registering a name twice
// returns the original ID.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cmd, ok := r.byName[name]; ok {
		return cmd.ID
	}
	cmd := &Command{
		ID:      uint16(len(r.commands)),
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.commands = append(r.commands, cmd)
	r.byName[name] = cmd
	return cmd.ID
}

func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// Messages returns the registered commands and responses, each ordered by ID
func (r *CommandRegistry) Messages() (commands, responses []*Command) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cmd := range r.commands {
		if cmd.Handler != nil {
			commands = append(commands, cmd)
		} else {
			responses = append(responses, cmd)
		}
	}
	return commands, responses
}

// DispatchCommand runs cmdID against the global registry. It has the shape of
// protocol.CommandHandler.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
