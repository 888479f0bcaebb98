package cursor

import (
	"context"

	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/pkg/errors"
)

// MapCursor projects every inner element through fn. Continuations pass through.
type MapCursor[T, R any] struct {
	protocol[R]
	inner interfaces.Cursor[T]
	fn    func(T) R
}

func NewMapCursor[T, R any](inner interfaces.Cursor[T], fn func(T) R) *MapCursor[T, R] {
	return &MapCursor[T, R]{
		protocol: protocol[R]{name: "Map"},
		inner:    inner,
		fn:       fn,
	}
}

func (c *MapCursor[T, R]) OnNext(ctx context.Context) (bool, error) {
	if done, ok, err := c.settled(); done {
		return ok, err
	}
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
	c.peek(c.fn(elem), cont)
	return true, nil
}

func (c *MapCursor[T, R]) fail(err error) error {
	if canceled(err) {
		return err
	}
	_ = c.Close()
	return errors.WithMessage(err, c.name)
}

func (c *MapCursor[T, R]) Accept(v interfaces.Visitor) bool {
	return walk(v, c, c.inner)
}

func (c *MapCursor[T, R]) Close() error {
	if !c.release() {
		return nil
	}
	return c.inner.Close()
}
