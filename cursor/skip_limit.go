package cursor

import (
	"context"
	"fmt"

	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/pkg/errors"
)

// SkipLimitCursor drops the first skip elements of inner and stops with
// ReturnLimitReached after limit elements. A zero limit means unlimited.
// When inner stops before the skip is used up, the continuation carries the
// remaining skip; callers reopen through ResumeSkip.
type SkipLimitCursor[T any] struct {
	protocol[T]
	inner    interfaces.Cursor[T]
	skip     int
	limit    int
	returned int
}

func NewSkipLimitCursor[T any](inner interfaces.Cursor[T], skip, limit int) *SkipLimitCursor[T] {
	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	return &SkipLimitCursor[T]{
		protocol: protocol[T]{name: fmt.Sprintf("SkipLimit(%d,%d)", skip, limit)},
		inner:    inner,
		skip:     skip,
		limit:    limit,
	}
}

// ApplySkipLimit wraps inner only when it has something to do.
func ApplySkipLimit[T any](inner interfaces.Cursor[T], skip, limit int) interfaces.Cursor[T] {
	if skip <= 0 && limit <= 0 {
		return inner
	}
	return NewSkipLimitCursor(inner, skip, limit)
}

func (c *SkipLimitCursor[T]) OnNext(ctx context.Context) (bool, error) {
	if done, ok, err := c.settled(); done {
		return ok, err
	}
	if c.limit > 0 && c.returned >= c.limit {
		// continuation 保持为最后一个返回元素之后;
		c.exhaust(interfaces.ReturnLimitReached, c.cont)
		return false, nil
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
			reason := c.inner.NoNextReason()
			if c.skip > 0 && !reason.IsSourceExhausted() {
				// 跳过尚未完成, 剩余 skip 随 continuation 带走;
				cont = EncodeSkipContinuation(cont, c.skip)
			}
			c.exhaust(reason, cont)
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
		if c.skip > 0 {
			c.skip--
			c.cont = cont
			c.consumed = true
			continue
		}
		c.returned++
		c.peek(elem, cont)
		return true, nil
	}
}

func (c *SkipLimitCursor[T]) fail(err error) error {
	if canceled(err) {
		return err
	}
	_ = c.Close()
	return errors.WithMessage(err, c.name)
}

func (c *SkipLimitCursor[T]) Accept(v interfaces.Visitor) bool {
	return walk(v, c, c.inner)
}

func (c *SkipLimitCursor[T]) Close() error {
	if !c.release() {
		return nil
	}
	return c.inner.Close()
}
