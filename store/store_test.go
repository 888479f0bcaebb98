package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStore interface {
	interfaces.StoreWriter
	Close() error
}

// forEachStore 在内存存储和 sqlite 存储上各跑一遍;
func forEachStore(t *testing.T, fn func(t *testing.T, s testStore)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore(&Options{FetchBatch: 2})
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		opt := GetDefaultOpt(t.TempDir())
		opt.FetchBatch = 2
		s, err := OpenSQLStore(opt)
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func load(t *testing.T, s testStore, index string, keys ...model.Tuple) {
	t.Helper()
	for i, k := range keys {
		require.NoError(t, s.Put(context.Background(), index, k, model.TupleOf(int64(i))))
	}
}

func scan(t *testing.T, c interfaces.Cursor[model.IndexEntry]) ([]model.Tuple, interfaces.NoNextReason, []byte) {
	t.Helper()
	var keys []model.Tuple
	for {
		ok, err := c.OnNext(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		e, err := c.Next()
		require.NoError(t, err)
		keys = append(keys, e.Key)
	}
	cont, err := c.Continuation()
	require.NoError(t, err)
	return keys, c.NoNextReason(), cont
}

func ints(ns ...int) []model.Tuple {
	out := make([]model.Tuple, len(ns))
	for i, n := range ns {
		out[i] = model.TupleOf("t", int64(n))
	}
	return out
}

func TestStore_ScanOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		load(t, s, "i", ints(5, 1, 4, 2, 3)...)
		load(t, s, "other", ints(9)...)
		ctx := context.Background()

		c, err := s.ScanIndex(ctx, "i", model.All, nil, interfaces.ForwardScan)
		require.NoError(t, err)
		keys, reason, cont := scan(t, c)
		assert.Equal(t, ints(1, 2, 3, 4, 5), keys)
		assert.Equal(t, interfaces.SourceExhausted, reason)
		assert.Nil(t, cont)

		c, err = s.ScanIndex(ctx, "i", model.All, nil, interfaces.ReverseScan)
		require.NoError(t, err)
		keys, _, _ = scan(t, c)
		assert.Equal(t, ints(5, 4, 3, 2, 1), keys)

		rng := model.Between(model.TupleOf("t", int64(2)), model.TupleOf("t", int64(4)),
			model.RangeInclusive, model.RangeExclusive)
		c, err = s.ScanIndex(ctx, "i", rng, nil, interfaces.ForwardScan)
		require.NoError(t, err)
		keys, _, _ = scan(t, c)
		assert.Equal(t, ints(2, 3), keys)
	})
}

func TestStore_LimitAndResume(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		load(t, s, "i", ints(1, 2, 3, 4, 5)...)
		ctx := context.Background()
		for _, reverse := range []bool{false, true} {
			props := interfaces.ScanProperties{Reverse: reverse}.WithLimit(2)
			var all []model.Tuple
			var cont []byte
			for i := 0; i < 10; i++ {
				c, err := s.ScanIndex(ctx, "i", model.All, cont, props)
				require.NoError(t, err)
				keys, reason, next := scan(t, c)
				all = append(all, keys...)
				if reason.IsSourceExhausted() {
					break
				}
				assert.Equal(t, interfaces.ReturnLimitReached, reason)
				cont = next
			}
			if reverse {
				assert.Equal(t, ints(5, 4, 3, 2, 1), all)
			} else {
				assert.Equal(t, ints(1, 2, 3, 4, 5), all)
			}
		}
	})
}

func TestStore_ScanLimits(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		load(t, s, "i", ints(1, 2, 3, 4, 5)...)
		ctx := context.Background()

		props := interfaces.ScanProperties{Execute: interfaces.ExecuteProperties{ScannedRecordsLimit: 3}}
		c, err := s.ScanIndex(ctx, "i", model.All, nil, props)
		require.NoError(t, err)
		keys, reason, cont := scan(t, c)
		assert.Equal(t, ints(1, 2, 3), keys)
		assert.Equal(t, interfaces.ScanLimitReached, reason)
		assert.True(t, reason.IsOutOfBand())
		assert.Equal(t, ints(3)[0].Pack(), cont)

		props = interfaces.ScanProperties{Execute: interfaces.ExecuteProperties{ScannedBytesLimit: 1}}
		c, err = s.ScanIndex(ctx, "i", model.All, cont, props)
		require.NoError(t, err)
		keys, reason, _ = scan(t, c)
		assert.Equal(t, ints(4), keys)
		assert.Equal(t, interfaces.ScanLimitReached, reason)

		props = interfaces.ScanProperties{Execute: interfaces.ExecuteProperties{TimeLimit: time.Nanosecond}}
		c, err = s.ScanIndex(ctx, "i", model.All, nil, props)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
		_, reason, _ = scan(t, c)
		assert.Equal(t, interfaces.TimeLimitReached, reason)

		c, err = s.ScanIndex(ctx, "i", model.All, nil, interfaces.ForwardScan.WithSkip(2).WithLimit(2))
		require.NoError(t, err)
		keys, _, _ = scan(t, c)
		assert.Equal(t, ints(3, 4), keys)
	})
}

func TestStore_SkipAcrossScanLimit(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		load(t, s, "i", ints(0, 1, 2, 3, 4, 5, 6, 7)...)
		ctx := context.Background()
		for _, reverse := range []bool{false, true} {
			props := interfaces.ScanProperties{
				Execute: interfaces.ExecuteProperties{Skip: 3, ScannedRecordsLimit: 2},
				Reverse: reverse,
			}
			var all []model.Tuple
			var cont []byte
			for i := 0; i < 20; i++ {
				c, err := s.ScanIndex(ctx, "i", model.All, cont, props)
				require.NoError(t, err)
				keys, reason, next := scan(t, c)
				all = append(all, keys...)
				if reason.IsSourceExhausted() {
					break
				}
				assert.Equal(t, interfaces.ScanLimitReached, reason)
				cont = next
			}
			if reverse {
				assert.Equal(t, ints(4, 3, 2, 1, 0), all)
			} else {
				assert.Equal(t, ints(3, 4, 5, 6, 7), all)
			}
		}
	})
}

func TestStore_PrefixScan(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		load(t, s, "text",
			model.TupleOf("prefix", int64(1)),
			model.TupleOf("prelude", int64(2)),
			model.TupleOf("other", int64(3)))
		c, err := s.ScanIndex(context.Background(), "text", model.PrefixedBy("pre"), nil, interfaces.ForwardScan)
		require.NoError(t, err)
		keys, _, _ := scan(t, c)
		assert.Equal(t, []model.Tuple{model.TupleOf("prefix", int64(1)), model.TupleOf("prelude", int64(2))}, keys)
	})
}

func TestStore_PutClear(t *testing.T) {
	forEachStore(t, func(t *testing.T, s testStore) {
		ctx := context.Background()
		key := model.TupleOf("k", int64(1))
		require.NoError(t, s.Put(ctx, "i", key, model.TupleOf("a")))
		require.NoError(t, s.Put(ctx, "i", key, model.TupleOf("b")))
		c, err := s.ScanIndex(ctx, "i", model.All, nil, interfaces.ForwardScan)
		require.NoError(t, err)
		ok, err := c.OnNext(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		e, err := c.Next()
		require.NoError(t, err)
		assert.Equal(t, model.TupleOf("b"), e.Value)
		assert.Equal(t, "i", e.Index)

		require.NoError(t, s.Clear(ctx, "i", key))
		c, err = s.ScanIndex(ctx, "i", model.All, nil, interfaces.ForwardScan)
		require.NoError(t, err)
		keys, _, _ := scan(t, c)
		assert.Empty(t, keys)

		assert.True(t, errors.Is(s.Put(ctx, "i", model.Tuple{}, nil), common.ErrEmptyKey))
		assert.True(t, errors.Is(s.Put(ctx, "i", model.TupleOf(1.5), nil), common.ErrUnknownTupleType))
	})
}

func TestKeyValueCursor_Protocol(t *testing.T) {
	s := NewMemoryStore(nil)
	load(t, s, "i", ints(1)...)
	c, err := s.ScanIndex(context.Background(), "i", model.All, nil, interfaces.ForwardScan)
	require.NoError(t, err)
	_, err = c.Continuation()
	assert.True(t, errors.Is(err, common.ErrIllegalContinuationAccess))
	ok, err := c.OnNext(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	_, err = c.Continuation()
	assert.True(t, errors.Is(err, common.ErrIllegalContinuationAccess))
	_, err = c.Next()
	require.NoError(t, err)
	_, err = c.Next()
	assert.True(t, errors.Is(err, common.ErrNoSuchElement))
	require.NoError(t, c.Close())
	_, err = c.OnNext(context.Background())
	assert.True(t, errors.Is(err, common.ErrCursorClosed))
}

func TestSQLStore_Lock(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLStore(GetDefaultOpt(dir))
	require.NoError(t, err)

	_, err = OpenSQLStore(GetDefaultOpt(dir))
	assert.True(t, errors.Is(err, common.ErrLockDB))

	require.NoError(t, s.Close())
	again, err := OpenSQLStore(GetDefaultOpt(dir))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestSQLStore_TempDir(t *testing.T) {
	s, err := OpenSQLStore(nil)
	require.NoError(t, err)
	dir := s.WorkDir()
	_, err = os.Stat(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
