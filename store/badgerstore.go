package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/krehermann/intcode/types"
	"go.uber.org/zap"
)

// BadgerStore persists results in a badger directory.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
}

// badgerLogger routes badger's own logging into zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}

func OpenBadgerStore(path string, logger *zap.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("store")

	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{logger.Named("badger").Sugar()}).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open result store %s: %w", path, err)
	}

	logger.Debug("opened", zap.String("path", path), zap.String("backend", "badger"))
	return &BadgerStore{db: db, logger: logger}, nil
}

func (s *BadgerStore) Put(key types.Hash, r Result) error {
	b, err := encodeResult(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key.ToSlice(), b)
	})
}

func (s *BadgerStore) Get(key types.Hash) (Result, error) {
	var r Result
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.ToSlice())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r, err = decodeResult(val)
			return err
		})
	})
	return r, err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
