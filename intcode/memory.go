package intcode

import "fmt"

const (
	// DefaultMemorySize is the number of cells allocated up front.
	DefaultMemorySize = 4096
	// DefaultMemoryLimit caps lazy growth.
	DefaultMemoryLimit = 1 << 20
)

// Memory is the flat cell array of a machine. Reads past the allocated end
// return zero and writes past it grow the array, up to limit cells.
type Memory struct {
	cells []int64
	limit int64
}

func NewMemory(p Program, size int, limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	limit = max(limit, len(p))
	size = min(max(size, len(p)), limit)

	cells := make([]int64, size)
	copy(cells, p)

	return &Memory{
		cells: cells,
		limit: int64(limit),
	}
}

func (m *Memory) check(addr int64) error {
	if addr < 0 || addr >= m.limit {
		return fmt.Errorf("%w: address %d (limit %d)", ErrOutOfBounds, addr, m.limit)
	}
	return nil
}

func (m *Memory) Peek(addr int64) (int64, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	if addr >= int64(len(m.cells)) {
		return 0, nil
	}
	return m.cells[addr], nil
}

func (m *Memory) Poke(addr int64, v int64) error {
	if err := m.check(addr); err != nil {
		return err
	}
	if addr >= int64(len(m.cells)) {
		m.grow(addr + 1)
	}
	m.cells[addr] = v
	return nil
}

// grow doubles the allocation until n cells fit, never beyond the limit.
func (m *Memory) grow(n int64) {
	size := int64(len(m.cells))
	if size == 0 {
		size = 1
	}
	for size < n {
		size *= 2
	}
	if size > m.limit {
		size = m.limit
	}
	cells := make([]int64, size)
	copy(cells, m.cells)
	m.cells = cells
}

// Len is the number of currently allocated cells.
func (m *Memory) Len() int {
	return len(m.cells)
}

// Snapshot returns a copy of the first n cells, or all allocated cells when n
// is not positive.
func (m *Memory) Snapshot(n int) []int64 {
	if n <= 0 || n > len(m.cells) {
		n = len(m.cells)
	}
	out := make([]int64, n)
	copy(out, m.cells)
	return out
}
