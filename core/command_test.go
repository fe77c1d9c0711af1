package core

import (
	"errors"
	"testing"

	"servomux/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	registry.Register(42, "test_command arg=%u", handler)

	cmd, ok := registry.GetCommand(42)
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}
	if cmd.Format != "test_command arg=%u" {
		t.Errorf("Unexpected format '%s'", cmd.Format)
	}

	var data []byte
	if err := registry.Dispatch(42, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Handler was not called")
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 command, got %d", registry.Count())
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	registry := NewCommandRegistry()

	var data []byte
	err := registry.Dispatch(7, &data)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Expected ErrUnknownCommand, got %v", err)
	}
	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) || unknown.ID != 7 {
		t.Errorf("Expected UnknownCommandError for ID 7, got %v", err)
	}
	if err.Error() != "unknown command ID: 7" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var receivedValue uint32

	handler := func(data *[]byte) error {
		val, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		receivedValue = val
		return nil
	}

	registry.Register(1, "test_args value=%u", handler)

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345)
	data := output.Result()

	if err := registry.Dispatch(1, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if receivedValue != 12345 {
		t.Errorf("Expected value 12345, got %d", receivedValue)
	}
}
