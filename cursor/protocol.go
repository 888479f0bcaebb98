package cursor

import (
	"context"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/pkg/errors"
)

type state uint8

const (
	// ready: no pending element; OnNext must be called before Next.
	ready state = iota
	// peeked: one element is buffered.
	peeked
	// closed: exhausted or released.
	closed
)

func (s state) String() string {
	switch s {
	case ready:
		return "ready"
	case peeked:
		return "peeked"
	case closed:
		return "closed"
	}
	return "unknown"
}

// protocol is the Ready/Peeked/Closed state machine embedded by every cursor
// in this package. It supplies Name, Next, Continuation and NoNextReason.
type protocol[T any] struct {
	name     string
	state    state
	released bool // Close was called
	consumed bool // at least one element was returned by Next
	elem     T
	pending  []byte // continuation right after elem
	cont     []byte
	reason   interfaces.NoNextReason
}

func (p *protocol[T]) Name() string {
	return p.name
}

// settled short-circuits OnNext when its answer is already known: the pending
// element is returned again and an exhausted cursor stays exhausted.
func (p *protocol[T]) settled() (done, ok bool, err error) {
	switch {
	case p.released:
		return true, false, errors.Wrap(common.ErrCursorClosed, p.name)
	case p.state == peeked:
		return true, true, nil
	case p.state == closed:
		return true, false, nil
	}
	return false, false, nil
}

func (p *protocol[T]) peek(elem T, cont []byte) {
	p.elem = elem
	p.pending = cont
	p.state = peeked
}

// exhaust moves to closed. Terminal exhaustion drops the continuation.
func (p *protocol[T]) exhaust(reason interfaces.NoNextReason, cont []byte) {
	if reason.IsSourceExhausted() {
		cont = nil
	}
	p.reason = reason
	p.cont = cont
	p.consumed = true
	p.state = closed
}

func (p *protocol[T]) Next() (T, error) {
	var zero T
	if p.released {
		return zero, errors.Wrap(common.ErrCursorClosed, p.name)
	}
	if p.state != peeked {
		return zero, errors.Wrapf(common.ErrNoSuchElement, "%s is %s", p.name, p.state)
	}
	elem := p.elem
	p.elem = zero
	p.cont, p.pending = p.pending, nil
	p.consumed = true
	p.state = ready
	return elem, nil
}

func (p *protocol[T]) Continuation() ([]byte, error) {
	switch {
	case p.released:
		return nil, errors.Wrap(common.ErrCursorClosed, p.name)
	case p.state == peeked:
		return nil, errors.Wrapf(common.ErrIllegalContinuationAccess, "%s has a pending element", p.name)
	case !p.consumed:
		return nil, errors.Wrapf(common.ErrIllegalContinuationAccess, "%s has not returned an element yet", p.name)
	}
	return p.cont, nil
}

func (p *protocol[T]) NoNextReason() interfaces.NoNextReason {
	return p.reason
}

// release marks the cursor closed for good; it reports false on repeat calls.
func (p *protocol[T]) release() bool {
	if p.released {
		return false
	}
	var zero T
	p.released = true
	p.elem = zero
	p.state = closed
	return true
}

// canceled errors leave the cursor untouched so the advance can be retried.
func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// walk enters n, recurses into children until one asks to stop, then leaves n.
func walk(v interfaces.Visitor, n interfaces.Node, children ...interfaces.Node) bool {
	if v.VisitEnter(n) {
		for _, child := range children {
			if child == nil {
				continue
			}
			if !child.Accept(v) {
				break
			}
		}
	}
	return v.VisitLeave(n)
}
