package intcode

import (
	"errors"
	"io"
	"strconv"
	"strings"
)

var errEmptyToken = errors.New("empty token")

// Program is the initial memory image of a machine. Machines copy it, so one
// Program may back any number of machines.
type Program []int64

// ParseProgram reads comma separated decimal integers. Whitespace around a
// token is ignored, as is a single trailing separator.
func ParseProgram(text string) (Program, error) {
	tokens := strings.Split(strings.TrimSpace(text), ",")
	if n := len(tokens); n > 1 && strings.TrimSpace(tokens[n-1]) == "" {
		tokens = tokens[:n-1]
	}

	p := make(Program, 0, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, &ParseError{Index: i, Token: tok, Err: errEmptyToken}
		}
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, &ParseError{Index: i, Token: tok, Err: err}
		}
		p = append(p, v)
	}
	return p, nil
}

// MustParseProgram is ParseProgram for literals known to be valid.
func MustParseProgram(text string) Program {
	p, err := ParseProgram(text)
	if err != nil {
		panic(err)
	}
	return p
}

func ReadProgram(r io.Reader) (Program, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseProgram(string(b))
}

func (p Program) String() string {
	var sb strings.Builder
	for i, v := range p {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	}
	return sb.String()
}

// Clone returns an independent copy.
func (p Program) Clone() Program {
	out := make(Program, len(p))
	copy(out, p)
	return out
}
