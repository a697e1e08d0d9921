package intcode

import "fmt"

// Mode is the addressing mode of a single instruction parameter.
type Mode int8

const (
	ModePosition  Mode = 0
	ModeImmediate Mode = 1
	ModeRelative  Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeImmediate:
		return "immediate"
	case ModeRelative:
		return "relative"
	}
	return fmt.Sprintf("mode(%d)", int8(m))
}

// Param is a decoded operand.
type Param struct {
	Mode  Mode
	Value int64
}

func (p Param) String() string {
	switch p.Mode {
	case ModeImmediate:
		return fmt.Sprintf("#%d", p.Value)
	case ModeRelative:
		return fmt.Sprintf("rb%+d", p.Value)
	}
	return fmt.Sprintf("[%d]", p.Value)
}

// Opcode identifies an operation.
type Opcode int8

const (
	OpUnknown Opcode = iota
	OpAdd
	OpMultiply
	OpInput
	OpOutput
	OpJumpIfTrue
	OpJumpIfFalse
	OpLessThan
	OpEquals
	OpAdjustRelativeBase
	OpHalt
)

var opcodeNames = [...]string{
	OpUnknown:            "unknown",
	OpAdd:                "add",
	OpMultiply:           "mul",
	OpInput:              "in",
	OpOutput:             "out",
	OpJumpIfTrue:         "jnz",
	OpJumpIfFalse:        "jz",
	OpLessThan:           "lt",
	OpEquals:             "eq",
	OpAdjustRelativeBase: "arb",
	OpHalt:               "halt",
}

func (op Opcode) String() string {
	if op < 0 || int(op) >= len(opcodeNames) {
		return fmt.Sprintf("opcode(%d)", int8(op))
	}
	return opcodeNames[op]
}

// Arity is the number of memory words the instruction occupies, opcode word
// included. OpUnknown has arity 0 and must never be used to advance ip.
func (op Opcode) Arity() int {
	switch op {
	case OpHalt:
		return 1
	case OpInput, OpOutput, OpAdjustRelativeBase:
		return 2
	case OpJumpIfTrue, OpJumpIfFalse:
		return 3
	case OpAdd, OpMultiply, OpLessThan, OpEquals:
		return 4
	}
	return 0
}

// opcodeFromCode maps the two low decimal digits of an instruction word.
func opcodeFromCode(code int64) Opcode {
	switch code {
	case 1:
		return OpAdd
	case 2:
		return OpMultiply
	case 3:
		return OpInput
	case 4:
		return OpOutput
	case 5:
		return OpJumpIfTrue
	case 6:
		return OpJumpIfFalse
	case 7:
		return OpLessThan
	case 8:
		return OpEquals
	case 9:
		return OpAdjustRelativeBase
	case 99:
		return OpHalt
	}
	return OpUnknown
}

// Instruction is one decoded operation. Code holds the raw two digit opcode so
// an OpUnknown instruction still reports what was found in memory. Only the
// first Op.Arity()-1 entries of Params are meaningful.
type Instruction struct {
	Op     Opcode
	Code   int64
	Params [3]Param
}

// Args returns the meaningful parameters.
func (in Instruction) Args() []Param {
	n := in.Op.Arity() - 1
	if n < 0 {
		n = 0
	}
	return in.Params[:n]
}

func (in Instruction) String() string {
	if in.Op == OpUnknown {
		return fmt.Sprintf("unknown(%d)", in.Code)
	}
	s := in.Op.String()
	for _, p := range in.Args() {
		s += " " + p.String()
	}
	return s
}

var modeDivisors = [3]int64{100, 1_000, 10_000}

// Decode reads the instruction at ip. It never modifies mem, so decoding the
// same word twice yields identical instructions.
func Decode(mem *Memory, ip int64) (Instruction, error) {
	word, err := mem.Peek(ip)
	if err != nil {
		return Instruction{}, err
	}

	code := word % 100
	in := Instruction{
		Op:   opcodeFromCode(code),
		Code: code,
	}

	for k := 0; k < in.Op.Arity()-1; k++ {
		mode := Mode((word / modeDivisors[k]) % 10)
		if mode != ModePosition && mode != ModeImmediate && mode != ModeRelative {
			return in, fmt.Errorf("%w: %d in word %d (parameter %d)", ErrInvalidMode, mode, word, k+1)
		}
		v, err := mem.Peek(ip + int64(k) + 1)
		if err != nil {
			return in, err
		}
		in.Params[k] = Param{Mode: mode, Value: v}
	}

	return in, nil
}
