package cursor

import (
	"context"
	"fmt"

	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/pkg/errors"
)

// IntersectionCursor emits one result per key present in every child, in
// merged order. combine receives the contributing elements in child order.
type IntersectionCursor[T, R any] struct {
	protocol[R]
	m       *merge[T]
	combine func([]T) R
}

// NewIntersectionCursor collapses every match to the element of the first child.
func NewIntersectionCursor[T any](keyFn KeyFunc[T], reverse bool, children []ChildFactory[T],
	continuation []byte, opt *MergeOptions) (*IntersectionCursor[T, T], error) {
	return newIntersection(fmt.Sprintf("Intersection(%d)", len(children)), keyFn, reverse, children,
		continuation, opt, func(group []T) T {
			return group[0]
		})
}

// NewIntersectionMultiCursor keeps all N contributing elements of every match.
func NewIntersectionMultiCursor[T any](keyFn KeyFunc[T], reverse bool, children []ChildFactory[T],
	continuation []byte, opt *MergeOptions) (*IntersectionCursor[T, []T], error) {
	return newIntersection(fmt.Sprintf("IntersectionMulti(%d)", len(children)), keyFn, reverse, children,
		continuation, opt, func(group []T) []T {
			return group
		})
}

func newIntersection[T, R any](name string, keyFn KeyFunc[T], reverse bool, children []ChildFactory[T],
	continuation []byte, opt *MergeOptions, combine func([]T) R) (*IntersectionCursor[T, R], error) {
	m, err := newMerge(name, keyFn, reverse, children, continuation, opt)
	if err != nil {
		return nil, err
	}
	return &IntersectionCursor[T, R]{
		protocol: protocol[R]{name: name},
		m:        m,
		combine:  combine,
	}, nil
}

func (c *IntersectionCursor[T, R]) OnNext(ctx context.Context) (bool, error) {
	if done, ok, err := c.settled(); done {
		return ok, err
	}
	if len(c.m.children) == 0 {
		c.exhaust(interfaces.SourceExhausted, nil)
		return false, nil
	}
	for {
		if err := c.m.prime(ctx); err != nil {
			return false, c.fail(err)
		}
		// 任一 child 耗尽, 之后不可能再有公共 key;
		if c.m.anyExhausted() {
			c.exhaust(interfaces.SourceExhausted, nil)
			return false, nil
		}
		if reason, ok := c.m.stopReason(); ok {
			c.m.logStop(reason)
			c.exhaust(reason, c.m.continuation())
			return false, nil
		}
		key := c.m.children[c.m.best()].key
		matched := 0
		for _, ch := range c.m.children {
			if c.m.compare(ch.key, key) == 0 {
				matched++
			}
		}
		if matched == len(c.m.children) {
			group := make([]T, len(c.m.children))
			for i, ch := range c.m.children {
				group[i] = ch.consume()
			}
			c.peek(c.combine(group), c.m.continuation())
			return true, nil
		}
		// 最小 key 不在所有 child 中, 丢弃这一组;
		for _, ch := range c.m.children {
			if c.m.compare(ch.key, key) == 0 {
				ch.consume()
			}
		}
	}
}

func (c *IntersectionCursor[T, R]) fail(err error) error {
	if canceled(err) {
		return err
	}
	_ = c.Close()
	return errors.WithMessage(err, c.name)
}

func (c *IntersectionCursor[T, R]) Accept(v interfaces.Visitor) bool {
	return walk(v, c, c.m.nodes()...)
}

func (c *IntersectionCursor[T, R]) Close() error {
	if !c.release() {
		return nil
	}
	return c.m.close()
}
