package intcode

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrOutOfBounds   = errors.New("memory access out of bounds")
	ErrInvalidMode   = errors.New("invalid addressing mode")
	ErrParse         = errors.New("malformed program")
	ErrNotReady      = errors.New("machine is not ready")

	// ErrDisconnected is returned by Queue.Send once the consumer has gone
	// away. The machine treats it as a diagnostic, not a fault.
	ErrDisconnected = errors.New("queue consumer disconnected")
	// ErrInputClosed is returned by Queue.Recv when every attached writer has
	// terminated and nothing is left to read.
	ErrInputClosed = errors.New("queue closed")
)

// Fault describes why a machine stopped without reaching a halt instruction.
type Fault struct {
	IP          int64
	Instruction Instruction
	Err         error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at ip %d (%s): %v", f.IP, f.Instruction, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// ParseError reports a token of program text that is not an integer.
type ParseError struct {
	Index int
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: token %d %q: %v", ErrParse, e.Index, e.Token, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}
