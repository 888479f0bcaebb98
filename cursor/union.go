package cursor

import (
	"context"
	"fmt"

	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/pkg/errors"
)

// UnionCursor emits every distinct key present in any child, in merged order.
// For a key present in several children the element of the first such child
// is returned.
type UnionCursor[T any] struct {
	protocol[T]
	m *merge[T]
}

func NewUnionCursor[T any](keyFn KeyFunc[T], reverse bool, children []ChildFactory[T],
	continuation []byte, opt *MergeOptions) (*UnionCursor[T], error) {
	name := fmt.Sprintf("Union(%d)", len(children))
	m, err := newMerge(name, keyFn, reverse, children, continuation, opt)
	if err != nil {
		return nil, err
	}
	return &UnionCursor[T]{protocol: protocol[T]{name: name}, m: m}, nil
}

func (c *UnionCursor[T]) OnNext(ctx context.Context) (bool, error) {
	if done, ok, err := c.settled(); done {
		return ok, err
	}
	if err := c.m.prime(ctx); err != nil {
		return false, c.fail(err)
	}
	// 任一 child 非终止停止, 整个 union 暂停, 否则合并结果不完整;
	if reason, ok := c.m.stopReason(); ok {
		c.m.logStop(reason)
		c.exhaust(reason, c.m.continuation())
		return false, nil
	}
	idx := c.m.best()
	if idx < 0 {
		c.exhaust(interfaces.SourceExhausted, nil)
		return false, nil
	}
	key := c.m.children[idx].key
	elem := c.m.children[idx].elem
	for _, ch := range c.m.children {
		if ch.has && c.m.compare(ch.key, key) == 0 {
			ch.consume()
		}
	}
	c.peek(elem, c.m.continuation())
	return true, nil
}

func (c *UnionCursor[T]) fail(err error) error {
	if canceled(err) {
		return err
	}
	_ = c.Close()
	return errors.WithMessage(err, c.name)
}

func (c *UnionCursor[T]) Accept(v interfaces.Visitor) bool {
	return walk(v, c, c.m.nodes()...)
}

func (c *UnionCursor[T]) Close() error {
	if !c.release() {
		return nil
	}
	return c.m.close()
}
