package network

import (
	"context"
	"fmt"

	"github.com/krehermann/intcode/intcode"
	"go.uber.org/zap"
)

type NetworkOpts struct {
	Topology Topology
	// Size is the number of machines, 5 when zero.
	Size        int
	Logger      *zap.Logger
	MachineOpts []intcode.Option
}

// Network is a set of machines running one program, wired per its
// Topology. A Network runs once.
type Network struct {
	NetworkOpts
	machines []*intcode.Machine
	logger   *zap.Logger
}

func NewNetwork(p intcode.Program, opts NetworkOpts) (*Network, error) {
	if opts.Size == 0 {
		opts.Size = 5
	}
	if opts.Size < 0 {
		return nil, fmt.Errorf("network size %d", opts.Size)
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}

	n := &Network{
		NetworkOpts: opts,
		machines:    make([]*intcode.Machine, opts.Size),
		logger:      opts.Logger.Named("network"),
	}

	mopts := append([]intcode.Option{intcode.WithLogger(opts.Logger)}, opts.MachineOpts...)
	for i := range n.machines {
		n.machines[i] = intcode.New(p, mopts...)
	}

	for i := 0; i < len(n.machines)-1; i++ {
		if err := Connect(n.machines[i], n.machines[i+1]); err != nil {
			return nil, err
		}
	}
	if opts.Topology == Feedback {
		if err := Connect(n.machines[len(n.machines)-1], n.machines[0]); err != nil {
			return nil, err
		}
	}

	return n, nil
}

func (n *Network) Machines() []*intcode.Machine {
	return n.machines
}

// Run feeds phases[i] to machine i, then initial to the first machine, and
// runs every machine on its own goroutine. The network is done when its
// final machine stops: the result is the last value that machine emitted.
// The other machines are then cancelled, and whatever they were doing is
// not an error. A fault in another machine before the final one stops
// fails the whole run.
func (n *Network) Run(ctx context.Context, phases []int64, initial int64) (int64, error) {
	if len(phases) != len(n.machines) {
		return 0, fmt.Errorf("network run: %d phases for %d machines", len(phases), len(n.machines))
	}

	for i, m := range n.machines {
		if err := m.Send(phases[i]); err != nil {
			return 0, fmt.Errorf("network run: phase %d: %w", i, err)
		}
	}
	if err := n.machines[0].Send(initial); err != nil {
		return 0, fmt.Errorf("network run: initial: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	last := n.machines[len(n.machines)-1]
	faults := make(chan error, len(n.machines))
	for i, m := range n.machines[:len(n.machines)-1] {
		i, m := i, m
		go func() {
			if err := m.Run(runCtx); err != nil {
				faults <- fmt.Errorf("machine %d: %w", i, err)
			}
		}()
	}
	last.Start(runCtx)

	err := n.waitLast(last, faults)
	cancel()
	for _, m := range n.machines {
		<-m.Done()
	}

	if err != nil {
		n.logger.Debug("network failed",
			zap.Stringer("topology", n.Topology),
			zap.Int64s("phases", phases),
			zap.Error(err))
		return 0, err
	}

	out := last.LastOutput()
	n.logger.Debug("network done",
		zap.Stringer("topology", n.Topology),
		zap.Int64s("phases", phases),
		zap.Int64("output", out))
	return out, nil
}

// waitLast blocks until the final machine stops and returns its error, or
// the first fault of another machine raised while the final one was still
// running.
func (n *Network) waitLast(last *intcode.Machine, faults <-chan error) error {
	for {
		select {
		case <-last.Done():
			if err := last.Wait(); err != nil {
				return fmt.Errorf("machine %d: %w", len(n.machines)-1, err)
			}
			return nil
		case err := <-faults:
			// state is set before the final machine closes its output, so
			// readers starved by that close see it terminal here
			if last.State().Terminal() {
				n.logger.Debug("ignoring fault after final machine stopped", zap.Error(err))
				continue
			}
			return err
		}
	}
}

// RunPipeline runs one copy of p per phase as a linear chain with input 0.
func RunPipeline(ctx context.Context, p intcode.Program, phases []int64, opts ...intcode.Option) (int64, error) {
	return runTopology(ctx, p, Pipeline, phases, opts)
}

// RunFeedback runs one copy of p per phase as a cycle with input 0.
func RunFeedback(ctx context.Context, p intcode.Program, phases []int64, opts ...intcode.Option) (int64, error) {
	return runTopology(ctx, p, Feedback, phases, opts)
}

func runTopology(ctx context.Context, p intcode.Program, t Topology, phases []int64, opts []intcode.Option) (int64, error) {
	if len(phases) == 0 {
		return 0, fmt.Errorf("no phases")
	}
	n, err := NewNetwork(p, NetworkOpts{
		Topology:    t,
		Size:        len(phases),
		MachineOpts: opts,
	})
	if err != nil {
		return 0, err
	}
	return n.Run(ctx, phases, 0)
}
