package store

import (
	"fmt"
	"sync"

	"github.com/krehermann/intcode/types"
)

// MemStore keeps results in a map owned by a single goroutine; Put and Get
// are requests sent to it.
type MemStore struct {
	putChan  chan *putRequest
	readChan chan *getRequest
	quit     chan struct{}
	once     sync.Once
	data     map[types.Hash]Result
}

type putRequest struct {
	key   types.Hash
	value Result
}

type getRequest struct {
	key      types.Hash
	response chan<- *lookupResult
}

type lookupResult struct {
	r      Result
	exists bool
}

func NewMemStore() *MemStore {
	s := &MemStore{
		putChan:  make(chan *putRequest),
		readChan: make(chan *getRequest),
		quit:     make(chan struct{}),
		data:     make(map[types.Hash]Result),
	}

	go s.handleAccess()
	return s
}

func (s *MemStore) handleAccess() {
	for {
		select {
		case req := <-s.putChan:
			s.data[req.key] = req.value
		case req := <-s.readChan:
			r, ok := s.data[req.key]
			req.response <- &lookupResult{
				r:      r,
				exists: ok,
			}
		case <-s.quit:
			return
		}
	}
}

func (s *MemStore) closed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func (s *MemStore) Put(key types.Hash, r Result) error {
	if s.closed() {
		return ErrClosed
	}
	r.Phases = append([]int64(nil), r.Phases...)
	select {
	case s.putChan <- &putRequest{key: key, value: r}:
		return nil
	case <-s.quit:
		return ErrClosed
	}
}

func (s *MemStore) Get(key types.Hash) (Result, error) {
	if s.closed() {
		return Result{}, ErrClosed
	}
	respCh := make(chan *lookupResult, 1)
	req := &getRequest{
		key:      key,
		response: respCh,
	}
	select {
	case s.readChan <- req:
	case <-s.quit:
		return Result{}, ErrClosed
	}
	resp := <-respCh
	if !resp.exists {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	resp.r.Phases = append([]int64(nil), resp.r.Phases...)
	return resp.r, nil
}

func (s *MemStore) Close() error {
	s.once.Do(func() { close(s.quit) })
	return nil
}
