package intcode

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Machine struct {
	mem *Memory
	// instruction pointer
	ip int64
	// relative base
	rb int64

	in  *Queue
	out *Queue

	state      atomic.Int32
	lastOutput atomic.Int64

	memSize  int
	memLimit int

	done   chan struct{}
	runErr error

	logger *zap.Logger
}

type Option func(*Machine) *Machine

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) *Machine {
		if l != nil {
			m.logger = l
		}
		return m
	}
}

// WithMemorySize sets how many cells are allocated before any growth.
func WithMemorySize(n int) Option {
	return func(m *Machine) *Machine {
		m.memSize = n
		return m
	}
}

// WithMemoryLimit bounds the address space.
func WithMemoryLimit(n int) Option {
	return func(m *Machine) *Machine {
		m.memLimit = n
		return m
	}
}

func WithInput(q *Queue) Option {
	return func(m *Machine) *Machine {
		m.in = q
		return m
	}
}

func WithOutput(q *Queue) Option {
	return func(m *Machine) *Machine {
		m.out = q
		return m
	}
}

// New builds a Ready machine holding its own copy of p, with a fresh queue
// pair unless queues are supplied through options.
func New(p Program, opts ...Option) *Machine {
	m := &Machine{
		memSize:  DefaultMemorySize,
		memLimit: DefaultMemoryLimit,
		logger:   zap.L(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		m = opt(m)
	}

	if m.in == nil {
		m.in = NewQueue()
	}
	if m.out == nil {
		m.out = NewQueue()
	}
	m.out.attach()

	m.mem = NewMemory(p, m.memSize, m.memLimit)
	m.logger = m.logger.Named("intcode")

	return m
}

func (m *Machine) State() State {
	return State(m.state.Load())
}

func (m *Machine) IP() int64 {
	return m.ip
}

func (m *Machine) RelativeBase() int64 {
	return m.rb
}

func (m *Machine) Input() *Queue {
	return m.in
}

func (m *Machine) Output() *Queue {
	return m.out
}

// Send feeds v to the machine's input queue.
func (m *Machine) Send(v int64) error {
	return m.in.Send(v)
}

// LastOutput is the most recent value the machine emitted, or zero.
func (m *Machine) LastOutput() int64 {
	return m.lastOutput.Load()
}

// SetInput replaces the input queue. Only valid before the machine starts.
func (m *Machine) SetInput(q *Queue) error {
	if m.State() != StateReady {
		return fmt.Errorf("set input: %w (state %s)", ErrNotReady, m.State())
	}
	m.in = q
	return nil
}

// SetOutput replaces the output queue. Only valid before the machine starts.
func (m *Machine) SetOutput(q *Queue) error {
	if m.State() != StateReady {
		return fmt.Errorf("set output: %w (state %s)", ErrNotReady, m.State())
	}
	q.attach()
	m.out.detach()
	m.out = q
	return nil
}

// Peek reads a memory cell. Memory is owned by the run loop, so this is only
// allowed before the machine starts or after it stops.
func (m *Machine) Peek(addr int64) (int64, error) {
	if m.State() == StateRunning {
		return 0, fmt.Errorf("peek: %w (state %s)", ErrNotReady, m.State())
	}
	return m.mem.Peek(addr)
}

// Poke writes a memory cell before the machine starts.
func (m *Machine) Poke(addr int64, v int64) error {
	if m.State() != StateReady {
		return fmt.Errorf("poke: %w (state %s)", ErrNotReady, m.State())
	}
	return m.mem.Poke(addr, v)
}

// Memory returns a copy of the first n cells of a stopped machine.
func (m *Machine) Memory(n int) []int64 {
	if m.State() == StateRunning {
		return nil
	}
	return m.mem.Snapshot(n)
}

// Op decodes the instruction at the current ip.
func (m *Machine) Op() (Instruction, error) {
	return Decode(m.mem, m.ip)
}

func (m *Machine) addr(p Param) int64 {
	if p.Mode == ModeRelative {
		return m.rb + p.Value
	}
	return p.Value
}

func (m *Machine) at(p Param) (int64, error) {
	if p.Mode == ModeImmediate {
		return p.Value, nil
	}
	return m.mem.Peek(m.addr(p))
}

// set writes through p. An immediate target writes to the cell its value
// names, same as position mode.
func (m *Machine) set(p Param, v int64) error {
	return m.mem.Poke(m.addr(p), v)
}

func (m *Machine) operands(in Instruction) (a, b int64, err error) {
	if a, err = m.at(in.Params[0]); err != nil {
		return 0, 0, err
	}
	if b, err = m.at(in.Params[1]); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Step decodes and executes one instruction. It reports halted once the
// machine reaches a halt instruction.
func (m *Machine) Step(ctx context.Context) (halted bool, err error) {
	in, err := m.Op()
	if err != nil {
		return false, err
	}

	if ce := m.logger.Check(zapcore.DebugLevel, "step"); ce != nil {
		ce.Write(
			zap.Int64("ip", m.ip),
			zap.Int64("rb", m.rb),
			zap.Stringer("instruction", in))
	}

	switch in.Op {
	case OpHalt:
		return true, nil

	case OpAdd, OpMultiply, OpLessThan, OpEquals:
		a, b, err := m.operands(in)
		if err != nil {
			return false, err
		}
		var v int64
		switch in.Op {
		case OpAdd:
			v = a + b
		case OpMultiply:
			v = a * b
		case OpLessThan:
			v = b2i(a < b)
		case OpEquals:
			v = b2i(a == b)
		}
		if err := m.set(in.Params[2], v); err != nil {
			return false, err
		}

	case OpInput:
		v, err := m.in.Recv(ctx)
		if err != nil {
			return false, err
		}
		if err := m.set(in.Params[0], v); err != nil {
			return false, err
		}

	case OpOutput:
		v, err := m.at(in.Params[0])
		if err != nil {
			return false, err
		}
		m.lastOutput.Store(v)
		if err := m.out.Send(v); err != nil {
			m.logger.Debug("output dropped",
				zap.Int64("ip", m.ip),
				zap.Int64("value", v),
				zap.Error(err))
		}

	case OpJumpIfTrue, OpJumpIfFalse:
		cond, target, err := m.operands(in)
		if err != nil {
			return false, err
		}
		if (cond != 0) == (in.Op == OpJumpIfTrue) {
			m.ip = target
			return false, nil
		}

	case OpAdjustRelativeBase:
		v, err := m.at(in.Params[0])
		if err != nil {
			return false, err
		}
		m.rb += v

	default:
		return false, fmt.Errorf("%w: %d", ErrUnknownOpcode, in.Code)
	}

	m.ip += int64(in.Op.Arity())
	return false, nil
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Run executes until the program halts or faults. A halt returns nil; any
// other termination returns a *Fault, including cancellation of ctx while
// the machine waits for input. Only the first call runs the machine.
func (m *Machine) Run(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateReady), int32(StateRunning)) {
		return fmt.Errorf("vm run: %w (state %s)", ErrNotReady, m.State())
	}
	err := m.run(ctx)
	m.out.detach()
	m.runErr = err
	close(m.done)
	return err
}

// ctxCheckInterval is how many steps run between cancellation checks.
const ctxCheckInterval = 1024

func (m *Machine) run(ctx context.Context) error {
	m.logger.Debug("run", zap.Int("memory", m.mem.Len()))

	for steps := 1; ; steps++ {
		halted, err := m.Step(ctx)
		if err == nil && !halted && steps%ctxCheckInterval == 0 {
			// Input is the only step that waits on ctx itself
			err = ctx.Err()
		}
		if err != nil {
			in, _ := m.Op()
			fault := &Fault{IP: m.ip, Instruction: in, Err: err}
			m.state.Store(int32(StateFaulted))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				m.logger.Debug("cancelled", zap.Error(fault))
			} else {
				m.logger.Error("fault", zap.Error(fault))
			}
			return fault
		}
		if halted {
			m.state.Store(int32(StateHalted))
			m.logger.Debug("halt",
				zap.Int64("ip", m.ip),
				zap.Int64("last_output", m.LastOutput()))
			return nil
		}
	}
}

// Start runs the machine on its own goroutine. Use Wait or Done to learn
// when it stops.
func (m *Machine) Start(ctx context.Context) {
	go m.Run(ctx)
}

// Done is closed when the machine stops.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the machine stops and returns the Run error.
func (m *Machine) Wait() error {
	<-m.done
	return m.runErr
}

// Outputs collects every value the machine emits until its output queue is
// closed, which happens when the machine and every other writer of that
// queue have stopped.
func (m *Machine) Outputs(ctx context.Context) ([]int64, error) {
	var out []int64
	for {
		v, err := m.out.Recv(ctx)
		if errors.Is(err, ErrInputClosed) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
