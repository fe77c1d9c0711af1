package core

import (
	"errors"
	"sync"
)

// ErrUnknownCommand is returned when dispatching an unregistered ID
var ErrUnknownCommand = errors.New("unknown command")

// UnknownCommandError reports the offending ID; it matches ErrUnknownCommand
// under errors.Is
type UnknownCommandError struct {
	ID uint16
}

func (e *UnknownCommandError) Error() string {
	return "unknown command ID: " + Itoa(int(e.ID))
}

func (e *UnknownCommandError) Is(target error) bool {
	return target == ErrUnknownCommand
}

// CommandHandler handles one command, decoding its own arguments from data
type CommandHandler func(data *[]byte) error

// Command is a registered command
type Command struct {
	ID      uint16
	Format  string // Dictionary form, e.g. "servo_detach oid=%c"
	Handler CommandHandler
}

// CommandRegistry maps fixed command IDs to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
	}
}

// Register adds or replaces the handler for id
func (r *CommandRegistry) Register(id uint16, format string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[id] = &Command{ID: id, Format: format, Handler: handler}
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID.
// Its signature matches protocol.CommandHandler so the registry can be
// handed to the transport directly.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return &UnknownCommandError{ID: cmdID}
	}
	return cmd.Handler(data)
}
