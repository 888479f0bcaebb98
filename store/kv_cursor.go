package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/cursor"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
)

type rawKV struct {
	key   []byte
	value []byte
}

// source reads up to limit raw pairs of one index inside [low, high), in key
// order or reverse key order.
type source interface {
	fetch(ctx context.Context, index string, low, high []byte, reverse bool, limit int) ([]rawKV, error)
}

// KeyValueCursor scans one index range in batches. Its continuation is the
// packed key of the last returned entry, or a skip continuation when a limit
// stopped the scan inside its skip.
type KeyValueCursor struct {
	src     source
	index   string
	low     []byte
	high    []byte
	reverse bool
	exec    interfaces.ExecuteProperties
	batch   int

	buf      []rawKV
	drained  bool // the source has nothing past buf
	started  time.Time
	skip     int
	returned int
	scanned  int
	bytes    int

	peeked   bool
	closed   bool
	consumed bool
	entry    model.IndexEntry
	pending  []byte
	last     []byte
	reason   interfaces.NoNextReason
	done     bool
}

func newKeyValueCursor(src source, index string, rng model.TupleRange, continuation []byte,
	props interfaces.ScanProperties, batch int, logger *slog.Logger) (*KeyValueCursor, error) {
	low, high, err := rng.ToBytes()
	if err != nil {
		return nil, err
	}
	continuation, skip, err := cursor.ResumeSkip(continuation, props.Execute.Skip)
	if err != nil {
		return nil, errors.WithMessagef(err, "KeyValue(%s)", index)
	}
	if continuation != nil {
		if props.Reverse {
			if bytes.Compare(continuation, high) < 0 {
				high = model.SafeCopy(nil, continuation)
			}
		} else {
			// 严格大于上次返回的 key;
			next := append(model.SafeCopy(nil, continuation), 0x00)
			if bytes.Compare(next, low) > 0 {
				low = next
			}
		}
	}
	if batch <= 0 {
		batch = common.DefaultFetchBatch
	}
	c := &KeyValueCursor{
		src:     src,
		index:   index,
		low:     low,
		high:    high,
		reverse: props.Reverse,
		exec:    props.Execute,
		batch:   batch,
		started: time.Now(),
		last:    continuation,
		skip:    skip,
	}
	common.OrDefault(logger).Debug("key value scan",
		slog.String(common.KeyIndexName, index),
		slog.String(common.KeyRangeStart, fmt.Sprintf("%x", low)),
		slog.String(common.KeyRangeEnd, fmt.Sprintf("%x", high)),
		slog.Int(common.KeySkip, c.skip),
		slog.Int(common.KeyLimit, props.Execute.ReturnedRowLimit),
		slog.Bool(common.KeyReverse, props.Reverse))
	return c, nil
}

func (c *KeyValueCursor) Name() string {
	return fmt.Sprintf("KeyValue(%s)", c.index)
}

func (c *KeyValueCursor) Accept(v interfaces.Visitor) bool {
	v.VisitEnter(c)
	return v.VisitLeave(c)
}

func (c *KeyValueCursor) OnNext(ctx context.Context) (bool, error) {
	switch {
	case c.closed:
		return false, errors.Wrap(common.ErrCursorClosed, c.Name())
	case c.peeked:
		return true, nil
	case c.done:
		return false, nil
	}
	if c.exec.ReturnedRowLimit > 0 && c.returned >= c.exec.ReturnedRowLimit {
		return c.stop(interfaces.ReturnLimitReached), nil
	}
	for {
		if reason, hit := c.outOfBand(); hit {
			return c.stop(reason), nil
		}
		kv, ok, err := c.read(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return c.stop(interfaces.SourceExhausted), nil
		}
		c.scanned++
		c.bytes += len(kv.key) + len(kv.value)
		if c.skip > 0 {
			c.skip--
			c.last = kv.key
			continue
		}
		entry, err := c.decode(kv)
		if err != nil {
			return false, err
		}
		c.entry = entry
		c.pending = kv.key
		c.peeked = true
		c.returned++
		return true, nil
	}
}

// outOfBand checks the scan limits before the next record is read.
func (c *KeyValueCursor) outOfBand() (interfaces.NoNextReason, bool) {
	if c.exec.ScannedRecordsLimit > 0 && c.scanned >= c.exec.ScannedRecordsLimit {
		return interfaces.ScanLimitReached, true
	}
	if c.exec.ScannedBytesLimit > 0 && c.bytes >= c.exec.ScannedBytesLimit {
		return interfaces.ScanLimitReached, true
	}
	if c.exec.TimeLimit > 0 && time.Since(c.started) >= c.exec.TimeLimit {
		return interfaces.TimeLimitReached, true
	}
	return interfaces.SourceExhausted, false
}

func (c *KeyValueCursor) read(ctx context.Context) (rawKV, bool, error) {
	if len(c.buf) == 0 {
		if c.drained {
			return rawKV{}, false, nil
		}
		if err := ctx.Err(); err != nil {
			return rawKV{}, false, err
		}
		n := c.batch
		if c.exec.ReturnedRowLimit > 0 && c.skip+c.exec.ReturnedRowLimit-c.returned < n {
			n = c.skip + c.exec.ReturnedRowLimit - c.returned
		}
		kvs, err := c.src.fetch(ctx, c.index, c.low, c.high, c.reverse, n)
		if err != nil {
			return rawKV{}, false, errors.WithMessage(err, c.Name())
		}
		if len(kvs) < n {
			c.drained = true
		}
		if len(kvs) == 0 {
			return rawKV{}, false, nil
		}
		tail := kvs[len(kvs)-1].key
		if c.reverse {
			c.high = tail
		} else {
			c.low = append(model.SafeCopy(nil, tail), 0x00)
		}
		c.buf = kvs
	}
	kv := c.buf[0]
	c.buf = c.buf[1:]
	return kv, true, nil
}

func (c *KeyValueCursor) decode(kv rawKV) (model.IndexEntry, error) {
	key, err := model.Unpack(kv.key)
	if err != nil {
		return model.IndexEntry{}, errors.WithMessagef(err, "%s: key", c.Name())
	}
	value, err := model.Unpack(kv.value)
	if err != nil {
		return model.IndexEntry{}, errors.WithMessagef(err, "%s: value", c.Name())
	}
	return model.NewIndexEntry(c.index, key, value), nil
}

func (c *KeyValueCursor) stop(reason interfaces.NoNextReason) bool {
	c.done = true
	c.consumed = true
	c.reason = reason
	if reason.IsSourceExhausted() {
		c.last = nil
	} else if c.skip > 0 {
		c.last = cursor.EncodeSkipContinuation(c.last, c.skip)
	}
	return false
}

func (c *KeyValueCursor) Next() (model.IndexEntry, error) {
	if c.closed {
		return model.IndexEntry{}, errors.Wrap(common.ErrCursorClosed, c.Name())
	}
	if !c.peeked {
		return model.IndexEntry{}, errors.Wrap(common.ErrNoSuchElement, c.Name())
	}
	entry := c.entry
	c.entry = model.IndexEntry{}
	c.last, c.pending = c.pending, nil
	c.peeked = false
	c.consumed = true
	return entry, nil
}

func (c *KeyValueCursor) Continuation() ([]byte, error) {
	switch {
	case c.closed:
		return nil, errors.Wrap(common.ErrCursorClosed, c.Name())
	case c.peeked:
		return nil, errors.Wrapf(common.ErrIllegalContinuationAccess, "%s has a pending element", c.Name())
	case !c.consumed:
		return nil, errors.Wrapf(common.ErrIllegalContinuationAccess, "%s has not returned an element yet", c.Name())
	}
	return c.last, nil
}

func (c *KeyValueCursor) NoNextReason() interfaces.NoNextReason {
	return c.reason
}

func (c *KeyValueCursor) Close() error {
	c.closed = true
	c.buf = nil
	return nil
}
