package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/krehermann/intcode/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testResult(max int64) Result {
	return Result{
		Max:       max,
		Phases:    []int64{4, 3, 2, 1, 0},
		Topology:  "pipeline",
		CreatedAt: time.Date(2019, 12, 7, 0, 0, 0, 0, time.UTC),
	}
}

func testStores(t *testing.T) map[string]Storager {
	bolt, err := OpenBoltStore(filepath.Join(t.TempDir(), "results.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	badger, err := OpenBadgerStore(filepath.Join(t.TempDir(), "badger"), zaptest.NewLogger(t))
	require.NoError(t, err)

	stores := map[string]Storager{
		"mem":    NewMemStore(),
		"bolt":   bolt,
		"badger": badger,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_PutGet(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			nPuts := 5
			keys := make([]types.Hash, nPuts)
			for i := 0; i < nPuts; i++ {
				keys[i] = types.HashProgram([]int64{int64(i)}, "pipeline", nil, 0)
				assert.NoError(t, s.Put(keys[i], testResult(int64(i))))

				for j := 0; j <= i; j++ {
					got, err := s.Get(keys[j])
					assert.NoError(t, err)
					assert.Equal(t, testResult(int64(j)), got)
				}
			}

			_, err := s.Get(types.HashProgram([]int64{99}, "feedback", nil, 0))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Reopen(t *testing.T) {
	for _, backend := range []string{BackendBolt, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "results")
			key := types.HashProgram([]int64{3, 0, 99}, "feedback", []int64{5, 6, 7, 8, 9}, 0)

			s, err := Open(backend, path, zaptest.NewLogger(t))
			require.NoError(t, err)
			require.NoError(t, s.Put(key, testResult(139629729)))
			require.NoError(t, s.Close())

			s, err = Open(backend, path, zaptest.NewLogger(t))
			require.NoError(t, err)
			defer s.Close()
			got, err := s.Get(key)
			require.NoError(t, err)
			assert.Equal(t, testResult(139629729), got)
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(BackendBadger, "", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)
	s.Close()

	s, err = Open("", filepath.Join(t.TempDir(), "results.db"), nil)
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, s)
	s.Close()

	_, err = Open("redis", "somewhere", nil)
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestResultEncoding(t *testing.T) {
	b, err := encodeResult(testResult(7))
	require.NoError(t, err)
	got, err := decodeResult(b)
	require.NoError(t, err)
	assert.Equal(t, testResult(7), got)

	_, err = decodeResult([]byte("not zstd"))
	assert.Error(t, err)
}

func TestMemStore_Closed(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Put(types.Hash{}, Result{}), ErrClosed)
	_, err := s.Get(types.Hash{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCached(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	key := types.HashProgram([]int64{1}, "pipeline", nil, 0)
	calls := 0
	search := func(context.Context) (Result, error) {
		calls++
		return Result{Max: 42, Phases: []int64{0, 1}}, nil
	}

	r, hit, err := Cached(context.Background(), s, key, zaptest.NewLogger(t), search)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(42), r.Max)
	assert.False(t, r.CreatedAt.IsZero())

	r, hit, err = Cached(context.Background(), s, key, zaptest.NewLogger(t), search)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(42), r.Max)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, _, err = Cached(context.Background(), s, types.Hash{1}, nil, func(context.Context) (Result, error) {
		return Result{}, boom
	})
	assert.ErrorIs(t, err, boom)
}
