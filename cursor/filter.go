package cursor

import (
	"context"
	"time"

	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/utils"
	"github.com/pkg/errors"
)

// FilterCursor yields the inner elements accepted by pred, in inner order.
// Its continuation is always the inner continuation at the same point, so a
// resumed scan restarts after the last inspected element, matched or not.
type FilterCursor[T any] struct {
	protocol[T]
	inner interfaces.Cursor[T]
	pred  func(T) bool
	timer *utils.Timer
	stage string
}

func NewFilterCursor[T any](inner interfaces.Cursor[T], pred func(T) bool) *FilterCursor[T] {
	return &FilterCursor[T]{
		protocol: protocol[T]{name: "Filter"},
		inner:    inner,
		pred:     pred,
	}
}

// NewInstrumentedFilterCursor records every predicate evaluation on timer
// under stage.
func NewInstrumentedFilterCursor[T any](inner interfaces.Cursor[T], pred func(T) bool,
	timer *utils.Timer, stage string) *FilterCursor[T] {
	c := NewFilterCursor(inner, pred)
	c.name = "Filter(" + stage + ")"
	c.timer = timer
	c.stage = stage
	return c
}

// OnNext runs the whole skip-ahead loop before returning.
func (c *FilterCursor[T]) OnNext(ctx context.Context) (bool, error) {
	if done, ok, err := c.settled(); done {
		return ok, err
	}
	for {
		ok, err := c.inner.OnNext(ctx)
		if err != nil {
			return false, c.fail(err)
		}
		if !ok {
			cont, err := c.inner.Continuation()
			if err != nil {
				return false, c.fail(err)
			}
			c.exhaust(c.inner.NoNextReason(), cont)
			return false, nil
		}
		elem, err := c.inner.Next()
		if err != nil {
			return false, c.fail(err)
		}
		cont, err := c.inner.Continuation()
		if err != nil {
			return false, c.fail(err)
		}
		if c.test(elem) {
			c.peek(elem, cont)
			return true, nil
		}
		// 未命中的元素同样推进 continuation;
		c.cont = cont
		c.consumed = true
	}
}

func (c *FilterCursor[T]) test(elem T) bool {
	if c.timer == nil {
		return c.pred(elem)
	}
	start := time.Now()
	passed := c.pred(elem)
	c.timer.RecordFilter(c.stage, passed, time.Since(start))
	return passed
}

func (c *FilterCursor[T]) fail(err error) error {
	if canceled(err) {
		return err
	}
	_ = c.Close()
	return errors.WithMessage(err, c.name)
}

func (c *FilterCursor[T]) Accept(v interfaces.Visitor) bool {
	return walk(v, c, c.inner)
}

func (c *FilterCursor[T]) Close() error {
	if !c.release() {
		return nil
	}
	return c.inner.Close()
}
