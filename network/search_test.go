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

func TestSearch(t *testing.T) {
	tests := []struct {
		name       string
		program    string
		topology   Topology
		wantMax    int64
		wantPhases []int64
	}{
		{"pipeline a", pipelineA, Pipeline, 43210, []int64{4, 3, 2, 1, 0}},
		{"pipeline b", pipelineB, Pipeline, 54321, []int64{0, 1, 2, 3, 4}},
		{"pipeline c", pipelineC, Pipeline, 65210, []int64{1, 0, 4, 3, 2}},
		{"feedback a", feedbackA, Feedback, 139629729, []int64{9, 8, 7, 6, 5}},
		{"feedback b", feedbackB, Feedback, 18216, []int64{9, 7, 8, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Search(context.Background(),
				intcode.MustParseProgram(tt.program),
				tt.topology,
				WithLogger(zaptest.NewLogger(t)),
				WithParallelism(4))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, got.Max)
			assert.Equal(t, tt.wantPhases, got.Phases)
			assert.Equal(t, tt.topology, got.Topology)
		})
	}
}

func TestSearch_Sequential(t *testing.T) {
	got, err := Search(context.Background(), intcode.MustParseProgram(pipelineA), Pipeline,
		WithParallelism(1))
	require.NoError(t, err)
	assert.Equal(t, int64(43210), got.Max)
}

func TestSearch_CustomPhases(t *testing.T) {
	// outputs phase + input: every ordering sums to the same value, so the
	// first ordering wins the tie
	p := intcode.MustParseProgram("3,20,3,21,1,20,21,20,4,20,99")
	got, err := Search(context.Background(), p, Pipeline,
		WithPhases(1, 2, 3),
		WithInitial(10))
	require.NoError(t, err)
	assert.Equal(t, int64(16), got.Max)
	assert.Equal(t, []int64{1, 2, 3}, got.Phases)
}

func TestSearch_Fault(t *testing.T) {
	_, err := Search(context.Background(), intcode.MustParseProgram("42"), Pipeline)
	assert.ErrorIs(t, err, intcode.ErrUnknownOpcode)

	_, err = Search(context.Background(), intcode.MustParseProgram("99"), Pipeline, WithPhases())
	assert.Error(t, err)
}

func TestSearch_Limits(t *testing.T) {
	p := intcode.MustParseProgram(pipelineA)

	_, err := Search(context.Background(), p, Pipeline,
		WithPhases(0, 1, 2, 3, 4, 5, 6, 7, 8))
	assert.ErrorIs(t, err, ErrTooManyPhases)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err = Search(ctx, p, Pipeline, WithPhases(0, 1, 2, 3, 4, 5, 6, 7))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSearch_CancelledMidway(t *testing.T) {
	// every network spins until the deadline, so no ordering completes
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Search(ctx, intcode.MustParseProgram("3,0,1105,1,2"), Pipeline,
		WithPhases(0, 1, 2, 3, 4, 5, 6, 7),
		WithParallelism(2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPermutations(t *testing.T) {
	perms := Permutations([]int64{2, 0, 1})
	assert.Equal(t, [][]int64{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}, perms)

	all := Permutations(Feedback.Phases())
	assert.Len(t, all, 120)
	seen := make(map[[5]int64]bool)
	for _, p := range all {
		seen[[5]int64(p)] = true
	}
	assert.Len(t, seen, 120)

	assert.Equal(t, [][]int64{{7}}, Permutations([]int64{7}))
}
