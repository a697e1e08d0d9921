package store

import (
	"fmt"
	"time"

	"github.com/krehermann/intcode/types"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var resultsBucket = []byte("results")

// BoltStore persists results in a bbolt file so searches survive restarts.
type BoltStore struct {
	db     *bbolt.DB
	logger *zap.Logger
}

func OpenBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = zap.L()
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open result store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init result store %s: %w", path, err)
	}

	logger = logger.Named("store")
	logger.Debug("opened", zap.String("path", path))
	return &BoltStore{db: db, logger: logger}, nil
}

func (s *BoltStore) Put(key types.Hash, r Result) error {
	b, err := encodeResult(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(resultsBucket).Put(key[:], b)
	})
}

func (s *BoltStore) Get(key types.Hash) (Result, error) {
	var r Result
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(resultsBucket).Get(key[:])
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		var err error
		r, err = decodeResult(b)
		return err
	})
	return r, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
