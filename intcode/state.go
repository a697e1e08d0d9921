package intcode

import "fmt"

// State is the lifecycle of a machine. Halted and Faulted are terminal.
type State int32

const (
	StateReady State = iota
	StateRunning
	StateHalted
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateFaulted:
		return "faulted"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further instruction can execute.
func (s State) Terminal() bool {
	return s == StateHalted || s == StateFaulted
}
