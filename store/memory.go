package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
)

// MemoryStore keeps every index as a sorted slice of packed pairs.
type MemoryStore struct {
	mu      sync.RWMutex
	indexes map[string][]rawKV
	opt     *Options
	closed  bool
}

func NewMemoryStore(opt *Options) *MemoryStore {
	if opt == nil {
		opt = GetDefaultOpt("")
	}
	if opt.FetchBatch <= 0 {
		opt.FetchBatch = common.DefaultFetchBatch
	}
	return &MemoryStore{indexes: make(map[string][]rawKV), opt: opt}
}

func (s *MemoryStore) ScanIndex(ctx context.Context, index string, rng model.TupleRange, continuation []byte,
	props interfaces.ScanProperties) (interfaces.Cursor[model.IndexEntry], error) {
	return newKeyValueCursor(s, index, rng, continuation, props, s.opt.FetchBatch, s.opt.Logger)
}

func (s *MemoryStore) Put(_ context.Context, index string, key, value model.Tuple) error {
	k, v, err := packPair(key, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return common.ErrStoreClose
	}
	kvs := s.indexes[index]
	i := sort.Search(len(kvs), func(i int) bool { return bytes.Compare(kvs[i].key, k) >= 0 })
	if i < len(kvs) && bytes.Equal(kvs[i].key, k) {
		kvs[i].value = v
		return nil
	}
	kvs = append(kvs, rawKV{})
	copy(kvs[i+1:], kvs[i:])
	kvs[i] = rawKV{key: k, value: v}
	s.indexes[index] = kvs
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, index string, key model.Tuple) error {
	if err := key.Validate(); err != nil {
		return err
	}
	k := key.Pack()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return common.ErrStoreClose
	}
	kvs := s.indexes[index]
	i := sort.Search(len(kvs), func(i int) bool { return bytes.Compare(kvs[i].key, k) >= 0 })
	if i < len(kvs) && bytes.Equal(kvs[i].key, k) {
		s.indexes[index] = append(kvs[:i], kvs[i+1:]...)
	}
	return nil
}

func (s *MemoryStore) fetch(_ context.Context, index string, low, high []byte, reverse bool, limit int) ([]rawKV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, common.ErrStoreClose
	}
	kvs := s.indexes[index]
	from := sort.Search(len(kvs), func(i int) bool { return bytes.Compare(kvs[i].key, low) >= 0 })
	to := sort.Search(len(kvs), func(i int) bool { return bytes.Compare(kvs[i].key, high) >= 0 })
	out := make([]rawKV, 0, limit)
	if reverse {
		for i := to - 1; i >= from && len(out) < limit; i-- {
			out = append(out, copyKV(kvs[i]))
		}
		return out, nil
	}
	for i := from; i < to && len(out) < limit; i++ {
		out = append(out, copyKV(kvs[i]))
	}
	return out, nil
}

func (s *MemoryStore) Len(index string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.indexes[index])
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.indexes = nil
	return nil
}

func copyKV(kv rawKV) rawKV {
	return rawKV{key: model.SafeCopy(nil, kv.key), value: model.SafeCopy(nil, kv.value)}
}

func packPair(key, value model.Tuple) ([]byte, []byte, error) {
	if len(key) == 0 {
		return nil, nil, common.ErrEmptyKey
	}
	if err := key.Validate(); err != nil {
		return nil, nil, errors.WithMessage(err, "key")
	}
	if err := value.Validate(); err != nil {
		return nil, nil, errors.WithMessage(err, "value")
	}
	k := key.Pack()
	if len(k) > common.MaxKeySize {
		return nil, nil, errors.Errorf("key of %d bytes exceeds %d", len(k), common.MaxKeySize)
	}
	return k, value.Pack(), nil
}
