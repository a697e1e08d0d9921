package network

import (
	"fmt"
	"strings"

	"github.com/krehermann/intcode/intcode"
)

// Topology is how the machines of a Network are spliced together.
type Topology int

const (
	// Pipeline chains machine i's output into machine i+1's input.
	Pipeline Topology = iota
	// Feedback is a Pipeline whose last machine also feeds the first.
	Feedback
)

func (t Topology) String() string {
	switch t {
	case Pipeline:
		return "pipeline"
	case Feedback:
		return "feedback"
	}
	return fmt.Sprintf("topology(%d)", int(t))
}

func ParseTopology(s string) (Topology, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pipeline", "linear":
		return Pipeline, nil
	case "feedback", "loop":
		return Feedback, nil
	}
	return 0, fmt.Errorf("unknown topology %q", s)
}

// Phases is the phase setting set searched for the topology.
func (t Topology) Phases() []int64 {
	if t == Feedback {
		return []int64{5, 6, 7, 8, 9}
	}
	return []int64{0, 1, 2, 3, 4}
}

func (t Topology) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Topology) UnmarshalText(b []byte) error {
	v, err := ParseTopology(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Connect splices a's output into b's input. Both machines must not have
// started yet.
func Connect(a, b *intcode.Machine) error {
	if err := a.SetOutput(b.Input()); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}
