package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/krehermann/intcode/types"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("result not found")
	ErrClosed   = errors.New("store closed")
)

// Result is a cached phase search outcome.
type Result struct {
	Max       int64
	Phases    []int64
	Topology  string
	CreatedAt time.Time
}

type Storager interface {
	Put(key types.Hash, r Result) error
	Get(key types.Hash) (Result, error)
	Close() error
}

type GobResultEncoder struct {
	w io.Writer
}

func NewGobResultEncoder(w io.Writer) *GobResultEncoder {
	return &GobResultEncoder{w: w}
}

func (e GobResultEncoder) Encode(r *Result) error {
	return gob.NewEncoder(e.w).Encode(r)
}

type GobResultDecoder struct {
	r io.Reader
}

func NewGobResultDecoder(r io.Reader) *GobResultDecoder {
	return &GobResultDecoder{r: r}
}

func (d GobResultDecoder) Decode(r *Result) error {
	return gob.NewDecoder(d.r).Decode(r)
}

// encodeResult is the on-disk form of a Result: gob, zstd compressed.
func encodeResult(r Result) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := NewGobResultEncoder(buf).Encode(&r); err != nil {
		return nil, err
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(buf.Bytes(), nil), nil
}

func decodeResult(b []byte) (Result, error) {
	var r Result
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return r, err
	}
	defer decoder.Close()
	raw, err := decoder.DecodeAll(b, nil)
	if err != nil {
		return r, fmt.Errorf("decompress result: %w", err)
	}
	err = NewGobResultDecoder(bytes.NewReader(raw)).Decode(&r)
	return r, err
}

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendBadger = "badger"
)

// Open returns the store for backend. An empty path always means memory,
// and an empty backend with a path means bolt.
func Open(backend, path string, logger *zap.Logger) (Storager, error) {
	if path == "" || backend == BackendMemory {
		return NewMemStore(), nil
	}
	switch backend {
	case "", BackendBolt:
		return OpenBoltStore(path, logger)
	case BackendBadger:
		return OpenBadgerStore(path, logger)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

// Cached returns the stored result for key, or runs search and stores what
// it returns. The bool reports a cache hit.
func Cached(ctx context.Context, s Storager, key types.Hash, logger *zap.Logger, search func(context.Context) (Result, error)) (Result, bool, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("store")

	r, err := s.Get(key)
	if err == nil {
		logger.Debug("cache hit", zap.Stringer("key", key))
		return r, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Result{}, false, err
	}

	r, err = search(ctx)
	if err != nil {
		return Result{}, false, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := s.Put(key, r); err != nil {
		logger.Warn("cache put failed", zap.Stringer("key", key), zap.Error(err))
	}
	return r, false, nil
}
