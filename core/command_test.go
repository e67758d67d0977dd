package core

import (
	"testing"

	"ddsgen/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	id := registry.Register("test_command", "arg=%u", func(data *[]byte) error {
		called = true
		return nil
	})

	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok || cmd.Name != "test_command" {
		t.Fatalf("Failed to retrieve registered command: %+v", cmd)
	}
	if cmd.Signature() != "test_command arg=%u" {
		t.Errorf("Signature = %q", cmd.Signature())
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	if err := registry.Dispatch(999, &data); err != ErrUnknownCommand {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestCommandRegistryIDs(t *testing.T) {
	registry := NewCommandRegistry()
	nop := func(data *[]byte) error { return nil }

	id1 := registry.Register("command1", "arg1=%u", nop)
	id2 := registry.Register("response1", "val=%u", nil)
	id3 := registry.Register("command2", "", nop)

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("IDs not sequential: %d, %d, %d", id1, id2, id3)
	}

	// Re-registering keeps the original ID
	if again := registry.Register("command1", "other=%u", nop); again != id1 {
		t.Errorf("Re-register returned %d, want %d", again, id1)
	}
	if registry.Count() != 3 {
		t.Errorf("Count = %d, want 3", registry.Count())
	}

	// Responses have no handler and cannot be dispatched
	var data []byte
	if err := registry.Dispatch(id2, &data); err != ErrUnknownCommand {
		t.Errorf("Dispatching a response returned %v", err)
	}

	commands, responses := registry.Messages()
	if len(commands) != 2 || commands[0].Name != "command1" || commands[1].Name != "command2" {
		t.Errorf("commands = %+v", commands)
	}
	if len(responses) != 1 || responses[0].ID != 1 {
		t.Errorf("responses = %+v", responses)
	}

	if cmd, ok := registry.GetCommandByName("command2"); !ok || cmd.ID != 2 {
		t.Errorf("GetCommandByName(command2) = %+v, %t", cmd, ok)
	}
	if _, ok := registry.GetCommandByName("missing"); ok {
		t.Error("GetCommandByName found an unregistered name")
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var freq, phase uint32
	id := registry.Register("test_args", "freq=%u phase=%u", func(data *[]byte) error {
		var err error
		if freq, err = protocol.DecodeVLQUint(data); err != nil {
			return err
		}
		phase, err = protocol.DecodeVLQUint(data)
		return err
	})

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345678)
	protocol.EncodeVLQUint(output, 3141593)
	data := output.Result()

	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if freq != 12345678 || phase != 3141593 {
		t.Errorf("Decoded freq=%d phase=%d", freq, phase)
	}
	if len(data) != 0 {
		t.Errorf("Handler left %d bytes", len(data))
	}

	short := []byte{}
	if err := registry.Dispatch(id, &short); err != protocol.ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall for missing arguments, got %v", err)
	}
}
