package network

import (
	"context"
	"testing"
	"time"

	"github.com/krehermann/intcode/intcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	pipelineA = "3,15,3,16,1002,16,10,16,1,16,15,15,4,15,99,0,0"
	pipelineB = "3,23,3,24,1002,24,10,24,1002,23,\n" +
		"-1,23,101,5,23,23,1,24,23,23,4,23,99,0,0"
	pipelineC = "3,31,3,32,1002,32,10,32,1001,31,-2,31,1007,\n" +
		"31,0,33,1002,33,7,33,1,33,31,31,1,32,31,31,4,31,99,0,0,0"

	feedbackA = "3,26,1001,26,-4,26,3,27,1002,27,2,27,1,27,26,\n" +
		"27,4,27,1001,28,-1,28,1005,28,6,99,0,0,5"
	feedbackB = "3,52,1001,52,-5,52,3,53,1,52,56,54,1007,54,5,55,1005,55,26,1001,54,\n" +
		"-5,54,1105,1,12,1,53,54,53,1008,54,0,55,1001,55,1,55,2,53,55,53,4,\n" +
		"53,1001,56,-1,56,1005,56,6,99,0,0,0,0,10"
)

func TestNetwork_Run(t *testing.T) {
	tests := []struct {
		name     string
		program  string
		topology Topology
		phases   []int64
		want     int64
	}{
		{"pipeline 43210", pipelineA, Pipeline, []int64{4, 3, 2, 1, 0}, 43210},
		{"pipeline 54321", pipelineB, Pipeline, []int64{0, 1, 2, 3, 4}, 54321},
		{"pipeline 65210", pipelineC, Pipeline, []int64{1, 0, 4, 3, 2}, 65210},
		{"feedback 139629729", feedbackA, Feedback, []int64{9, 8, 7, 6, 5}, 139629729},
		{"feedback 18216", feedbackB, Feedback, []int64{9, 7, 8, 5, 6}, 18216},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := intcode.MustParseProgram(tt.program)
			n, err := NewNetwork(p, NetworkOpts{
				Topology: tt.topology,
				Logger:   zaptest.NewLogger(t),
			})
			require.NoError(t, err)

			got, err := n.Run(context.Background(), tt.phases, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			for _, m := range n.Machines() {
				assert.Equal(t, intcode.StateHalted, m.State())
			}
		})
	}
}

// relay reads its phase, then forever reads x and emits x+1, halting right
// after the emit when its phase equals halt.
func relay(halt int64) intcode.Program {
	return intcode.Program{
		3, 100, // phase
		3, 101, // x
		1001, 101, 1, 101,
		4, 101,
		1008, 100, halt, 102,
		1005, 102, 20,
		1105, 1, 2,
		99,
	}
}

func TestNetwork_FinalMachineDecides(t *testing.T) {
	tests := []struct {
		name     string
		topology Topology
		phases   []int64
		halt     int64
	}{
		// the first machine is left waiting on the closed feedback link
		{"feedback", Feedback, []int64{5, 6, 7, 8, 9}, 9},
		// upstream machines are left waiting for input that never comes
		{"pipeline", Pipeline, []int64{0, 1, 2, 3, 4}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNetwork(relay(tt.halt), NetworkOpts{
				Topology: tt.topology,
				Logger:   zaptest.NewLogger(t),
			})
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			got, err := n.Run(ctx, tt.phases, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(5), got)
			assert.NoError(t, ctx.Err())

			machines := n.Machines()
			assert.Equal(t, intcode.StateHalted, machines[len(machines)-1].State())
			for _, m := range machines[:len(machines)-1] {
				assert.True(t, m.State().Terminal())
			}
		})
	}
}

func TestRunHelpers(t *testing.T) {
	ctx := context.Background()

	got, err := RunPipeline(ctx, intcode.MustParseProgram(pipelineA), []int64{4, 3, 2, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(43210), got)

	got, err = RunFeedback(ctx, intcode.MustParseProgram(feedbackA), []int64{9, 8, 7, 6, 5})
	require.NoError(t, err)
	assert.Equal(t, int64(139629729), got)

	_, err = RunPipeline(ctx, intcode.MustParseProgram(pipelineA), nil)
	assert.Error(t, err)
}

func TestNetwork_PhaseCount(t *testing.T) {
	n, err := NewNetwork(intcode.MustParseProgram(pipelineA), NetworkOpts{Size: 3})
	require.NoError(t, err)
	_, err = n.Run(context.Background(), []int64{1, 2}, 0)
	assert.Error(t, err)
}

func TestNetwork_FaultStopsSiblings(t *testing.T) {
	// the first machine hits an unknown opcode; the others wait for input
	// that never comes and are stopped rather than left blocked
	p := intcode.MustParseProgram("3,10,3,11,42")
	n, err := NewNetwork(p, NetworkOpts{Topology: Feedback, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = n.Run(ctx, []int64{5, 6, 7, 8, 9}, 0)
	require.Error(t, err)
	assert.NoError(t, ctx.Err())

	assert.ErrorIs(t, n.Machines()[0].Wait(), intcode.ErrUnknownOpcode)
	for _, m := range n.Machines() {
		assert.Equal(t, intcode.StateFaulted, m.State())
	}
}

func TestConnect(t *testing.T) {
	a := intcode.New(intcode.MustParseProgram("104,7,99"))
	b := intcode.New(intcode.MustParseProgram("3,0,4,0,99"))
	require.NoError(t, Connect(a, b))
	assert.Same(t, b.Input(), a.Output())

	ctx := context.Background()
	a.Start(ctx)
	b.Start(ctx)
	assert.NoError(t, a.Wait())
	assert.NoError(t, b.Wait())
	assert.Equal(t, int64(7), b.LastOutput())

	assert.Error(t, Connect(a, b))
}

func TestParseTopology(t *testing.T) {
	for in, want := range map[string]Topology{
		"pipeline": Pipeline,
		"Linear":   Pipeline,
		"feedback": Feedback,
		" loop ":   Feedback,
	} {
		got, err := ParseTopology(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTopology("ring")
	assert.Error(t, err)

	var tp Topology
	require.NoError(t, tp.UnmarshalText([]byte("feedback")))
	assert.Equal(t, Feedback, tp)
	b, err := tp.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "feedback", string(b))
}
