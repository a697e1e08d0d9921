package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/krehermann/intcode/intcode"
)

var ErrShortTuple = errors.New("stream ended inside a tuple")

// Collect drains q until every writer has stopped.
func Collect(ctx context.Context, q *intcode.Queue) ([]int64, error) {
	var out []int64
	err := Tuples(ctx, q, 1, func(v []int64) error {
		out = append(out, v[0])
		return nil
	})
	return out, err
}

// Tuples reads q in groups of size values and hands each group to fn, in
// the order the values were produced. fn may feed the producing machine
// before the next group is read. The slice is reused; fn must copy it to
// keep it. It returns when q closes, fn fails or ctx
// ends.
func Tuples(ctx context.Context, q *intcode.Queue, size int, fn func([]int64) error) error {
	if size < 1 {
		return fmt.Errorf("tuple size %d", size)
	}
	buf := make([]int64, 0, size)
	for {
		v, err := q.Recv(ctx)
		if errors.Is(err, intcode.ErrInputClosed) {
			if len(buf) > 0 {
				return fmt.Errorf("%w: %d of %d values", ErrShortTuple, len(buf), size)
			}
			return nil
		}
		if err != nil {
			return err
		}
		buf = append(buf, v)
		if len(buf) == size {
			if err := fn(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
}
