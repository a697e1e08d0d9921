package network

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/krehermann/intcode/intcode"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxPhases bounds the phase set of a search; the search runs every
// ordering, n! networks.
const MaxPhases = 8

var ErrTooManyPhases = errors.New("too many phases")

// Result is the best outcome of a phase search.
type Result struct {
	Max      int64
	Phases   []int64
	Topology Topology
}

type searcher struct {
	phases      []int64
	initial     int64
	parallelism int
	logger      *zap.Logger
	machineOpts []intcode.Option
}

type SearchOpt func(*searcher) *searcher

// WithPhases overrides the topology's phase setting set.
func WithPhases(phases ...int64) SearchOpt {
	return func(s *searcher) *searcher {
		s.phases = phases
		return s
	}
}

// WithInitial sets the value fed to the first machine after its phase.
func WithInitial(v int64) SearchOpt {
	return func(s *searcher) *searcher {
		s.initial = v
		return s
	}
}

// WithParallelism bounds how many permutations run at once.
func WithParallelism(n int) SearchOpt {
	return func(s *searcher) *searcher {
		if n > 0 {
			s.parallelism = n
		}
		return s
	}
}

func WithLogger(l *zap.Logger) SearchOpt {
	return func(s *searcher) *searcher {
		if l != nil {
			s.logger = l
		}
		return s
	}
}

func WithMachineOptions(opts ...intcode.Option) SearchOpt {
	return func(s *searcher) *searcher {
		s.machineOpts = append(s.machineOpts, opts...)
		return s
	}
}

// Search runs the topology once for every ordering of the phase settings and
// returns the largest final output. Ties go to the lexicographically first
// ordering. A cancelled ctx returns the context error.
func Search(ctx context.Context, p intcode.Program, t Topology, opts ...SearchOpt) (Result, error) {
	s := &searcher{
		phases:      t.Phases(),
		parallelism: runtime.GOMAXPROCS(0),
		logger:      zap.L(),
	}
	for _, opt := range opts {
		s = opt(s)
	}
	logger := s.logger.Named("search")

	if len(s.phases) == 0 {
		return Result{}, fmt.Errorf("search: no phases")
	}
	if len(s.phases) > MaxPhases {
		return Result{}, fmt.Errorf("%w: %d phases, at most %d", ErrTooManyPhases, len(s.phases), MaxPhases)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var (
		mu       sync.Mutex
		res      Result
		bestIdx  = -1
		searched int
	)
	res.Topology = t

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	cur := slices.Clone(s.phases)
	slices.Sort(cur)
	for idx := 0; gctx.Err() == nil; idx++ {
		idx, perm := idx, slices.Clone(cur)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := NewNetwork(p, NetworkOpts{
				Topology:    t,
				Size:        len(perm),
				Logger:      s.logger,
				MachineOpts: s.machineOpts,
			})
			if err != nil {
				return err
			}
			out, err := n.Run(gctx, perm, s.initial)
			if err != nil {
				return fmt.Errorf("search %v: %w", perm, err)
			}

			mu.Lock()
			defer mu.Unlock()
			searched++
			// permutations are generated in lexicographic order, so the
			// lowest index wins a tie
			if bestIdx < 0 || out > res.Max || (out == res.Max && idx < bestIdx) {
				res.Max, res.Phases, bestIdx = out, perm, idx
			}
			return nil
		})
		if !nextPermutation(cur) {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	logger.Info("search done",
		zap.Stringer("topology", t),
		zap.Int("candidates", searched),
		zap.Int64("max", res.Max),
		zap.Int64s("phases", res.Phases))
	return res, nil
}

// Permutations returns every ordering of values in lexicographic order.
func Permutations(values []int64) [][]int64 {
	cur := slices.Clone(values)
	slices.Sort(cur)

	var out [][]int64
	for {
		out = append(out, slices.Clone(cur))
		if !nextPermutation(cur) {
			return out
		}
	}
}

// nextPermutation rearranges a into its lexicographic successor, reporting
// false when a is already the last ordering.
func nextPermutation(a []int64) bool {
	i := len(a) - 2
	for i >= 0 && a[i] >= a[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(a) - 1
	for a[j] <= a[i] {
		j--
	}
	a[i], a[j] = a[j], a[i]
	slices.Reverse(a[i+1:])
	return true
}
