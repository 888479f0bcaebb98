package cursor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/kebukeYi/TrainRecord/utils"
	"github.com/pkg/errors"
)

// KeyFunc projects an element to the key its children are ordered by.
type KeyFunc[T any] func(T) model.Tuple

// ChildFactory opens one child of a merge from its sub-continuation.
type ChildFactory[T any] func(continuation []byte) (interfaces.Cursor[T], error)

type MergeOptions struct {
	// Executor advances children concurrently; nil advances them inline.
	Executor interfaces.Executor
	Timer    *utils.Timer
	Logger   *slog.Logger
}

// mergeChild holds one child and its lookahead. cont is the child continuation
// right after the last element the merge consumed from it, so reopening the
// child with cont re-reads the lookahead.
type mergeChild[T any] struct {
	cursor    interfaces.Cursor[T]
	cont      []byte
	exhausted bool
	stopped   bool
	reason    interfaces.NoNextReason

	has      bool
	elem     T
	key      model.Tuple
	elemCont []byte
}

func (ch *mergeChild[T]) fetch(ctx context.Context, keyFn KeyFunc[T]) error {
	ok, err := ch.cursor.OnNext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		reason := ch.cursor.NoNextReason()
		if reason.IsSourceExhausted() {
			ch.exhausted = true
			ch.cont = nil
			return nil
		}
		cont, err := ch.cursor.Continuation()
		if err != nil {
			return err
		}
		ch.stopped = true
		ch.reason = reason
		ch.cont = cont
		return nil
	}
	elem, err := ch.cursor.Next()
	if err != nil {
		return err
	}
	cont, err := ch.cursor.Continuation()
	if err != nil {
		return err
	}
	ch.elem = elem
	ch.key = keyFn(elem)
	ch.elemCont = cont
	ch.has = true
	return nil
}

// consume marks the lookahead as merged.
func (ch *mergeChild[T]) consume() T {
	var zero T
	elem := ch.elem
	ch.cont = ch.elemCont
	ch.elem, ch.key, ch.elemCont = zero, nil, nil
	ch.has = false
	return elem
}

// merge is the k-way merge state shared by union and intersection.
type merge[T any] struct {
	name     string
	keyFn    KeyFunc[T]
	reverse  bool
	children []*mergeChild[T]
	exec     interfaces.Executor
	timer    *utils.Timer
	logger   *slog.Logger
}

func newMerge[T any](name string, keyFn KeyFunc[T], reverse bool, factories []ChildFactory[T],
	continuation []byte, opt *MergeOptions) (*merge[T], error) {
	if opt == nil {
		opt = &MergeOptions{}
	}
	positions, err := decodeMerge(continuation, len(factories))
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	m := &merge[T]{
		name:     name,
		keyFn:    keyFn,
		reverse:  reverse,
		children: make([]*mergeChild[T], len(factories)),
		exec:     opt.Executor,
		timer:    opt.Timer,
		logger:   common.OrDefault(opt.Logger),
	}
	for i, factory := range factories {
		ch := &mergeChild[T]{cont: positions[i].cont, exhausted: positions[i].exhausted}
		m.children[i] = ch
		if ch.exhausted {
			continue
		}
		if ch.cursor, err = factory(ch.cont); err != nil {
			// 关闭已经打开的 child;
			_ = m.close()
			return nil, errors.WithMessagef(err, "%s: open child %d", name, i)
		}
	}
	m.logger.Debug("merge cursor opened",
		slog.String(common.KeyCursor, name),
		slog.Int(common.KeyChildCount, len(factories)),
		slog.Bool(common.KeyReverse, reverse),
		slog.Bool(common.KeyContinuation, continuation != nil))
	return m, nil
}

// prime fills the lookahead of every live child that lacks one. Children are
// advanced concurrently; the call returns once all of them have settled.
func (m *merge[T]) prime(ctx context.Context) error {
	todo := make([]*mergeChild[T], 0, len(m.children))
	for _, ch := range m.children {
		if !ch.has && !ch.exhausted && !ch.stopped {
			todo = append(todo, ch)
		}
	}
	if len(todo) == 0 {
		return nil
	}
	m.timer.CountChildAdvance(m.name, len(todo))
	if len(todo) == 1 || m.exec == nil {
		for _, ch := range todo {
			if err := ch.fetch(ctx, m.keyFn); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, len(todo))
	var wg sync.WaitGroup
	for i, ch := range todo {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			// 池的 panic handler 只记录日志, 这里把 panic 转成 child 的错误;
			defer func() {
				if r := recover(); r != nil {
					errs[i] = errors.Wrapf(common.ErrChildPanic, "%s: child %d: %v", m.name, i, r)
				}
			}()
			errs[i] = ch.fetch(ctx, m.keyFn)
		}
		// 池满时在当前协程执行, 避免嵌套 merge 互相等待;
		if m.exec.Submit(task) != nil {
			task()
		}
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *merge[T]) compare(a, b model.Tuple) int {
	c := model.Compare(a, b)
	if m.reverse {
		return -c
	}
	return c
}

// best returns the index of the first child holding the smallest key, or -1.
func (m *merge[T]) best() int {
	idx := -1
	for i, ch := range m.children {
		if !ch.has {
			continue
		}
		if idx < 0 || m.compare(ch.key, m.children[idx].key) < 0 {
			idx = i
		}
	}
	return idx
}

// stopReason reports the first non-terminal stop among the children.
func (m *merge[T]) stopReason() (interfaces.NoNextReason, bool) {
	for _, ch := range m.children {
		if ch.stopped {
			return ch.reason, true
		}
	}
	return interfaces.SourceExhausted, false
}

func (m *merge[T]) anyExhausted() bool {
	for _, ch := range m.children {
		if ch.exhausted {
			return true
		}
	}
	return false
}

func (m *merge[T]) continuation() []byte {
	positions := make([]childPosition, len(m.children))
	for i, ch := range m.children {
		positions[i] = childPosition{cont: ch.cont, exhausted: ch.exhausted}
	}
	return encodeMerge(positions)
}

func (m *merge[T]) nodes() []interfaces.Node {
	out := make([]interfaces.Node, 0, len(m.children))
	for _, ch := range m.children {
		if ch.cursor != nil {
			out = append(out, ch.cursor)
		}
	}
	return out
}

func (m *merge[T]) logStop(reason interfaces.NoNextReason) {
	m.logger.Debug("merge cursor stopped",
		slog.String(common.KeyCursor, m.name),
		slog.String(common.KeyNoNextReason, reason.String()))
}

func (m *merge[T]) close() error {
	var first error
	for _, ch := range m.children {
		if ch == nil || ch.cursor == nil {
			continue
		}
		if err := ch.cursor.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
