package cursor

import (
	"context"
	"fmt"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/pkg/errors"
)

// ListCursor iterates an in-memory slice. Its continuation is the index of the
// next element.
type ListCursor[T any] struct {
	protocol[T]
	items []T
	next  int
}

func NewListCursor[T any](items []T, continuation []byte) (*ListCursor[T], error) {
	idx, err := decodeIndex(continuation)
	if err != nil {
		return nil, err
	}
	if idx > len(items) {
		return nil, errors.Wrapf(common.ErrInvalidContinuation, "list index %d beyond %d items", idx, len(items))
	}
	return &ListCursor[T]{
		protocol: protocol[T]{name: fmt.Sprintf("List(%d)", len(items))},
		items:    items,
		next:     idx,
	}, nil
}

// Empty returns a cursor that is terminally exhausted from the start.
func Empty[T any]() *ListCursor[T] {
	return &ListCursor[T]{protocol: protocol[T]{name: "Empty"}}
}

func (c *ListCursor[T]) OnNext(ctx context.Context) (bool, error) {
	if done, ok, err := c.settled(); done {
		return ok, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.next >= len(c.items) {
		c.exhaust(interfaces.SourceExhausted, nil)
		return false, nil
	}
	elem := c.items[c.next]
	c.next++
	c.peek(elem, encodeIndex(c.next))
	return true, nil
}

func (c *ListCursor[T]) Accept(v interfaces.Visitor) bool {
	return walk(v, c)
}

func (c *ListCursor[T]) Close() error {
	c.release()
	return nil
}
