package interfaces

import "context"

// NoNextReason explains why a cursor stopped producing elements.
type NoNextReason uint8

const (
	// SourceExhausted is terminal: nothing remains and no continuation exists.
	SourceExhausted NoNextReason = iota
	// ReturnLimitReached means the returned-row limit was hit.
	ReturnLimitReached
	// ScanLimitReached means the scanned records or bytes limit was hit.
	ScanLimitReached
	// TimeLimitReached means the scan ran out of its time budget.
	TimeLimitReached
)

func (r NoNextReason) IsSourceExhausted() bool {
	return r == SourceExhausted
}

// IsLimitReached reports whether the stop is resumable.
func (r NoNextReason) IsLimitReached() bool {
	return r != SourceExhausted
}

// IsOutOfBand reports limits that are not part of the query itself.
func (r NoNextReason) IsOutOfBand() bool {
	return r == ScanLimitReached || r == TimeLimitReached
}

func (r NoNextReason) String() string {
	switch r {
	case SourceExhausted:
		return "SOURCE_EXHAUSTED"
	case ReturnLimitReached:
		return "RETURN_LIMIT_REACHED"
	case ScanLimitReached:
		return "SCAN_LIMIT_REACHED"
	case TimeLimitReached:
		return "TIME_LIMIT_REACHED"
	}
	return "UNKNOWN"
}

// Node is the structural view of a cursor used by visitors.
type Node interface {
	Name() string
	// Accept walks the cursor tree: enter self, recurse into children, leave self.
	Accept(v Visitor) bool
}

type Visitor interface {
	// VisitEnter returns false to skip the children of n.
	VisitEnter(n Node) bool
	VisitLeave(n Node) bool
}

// Cursor is a resumable, ordered stream of elements.
//
// Usage:
//
//	for {
//	    ok, err := c.OnNext(ctx)
//	    if err != nil || !ok {
//	        break
//	    }
//	    elem, _ := c.Next()
//	    cont, _ := c.Continuation() // resumes right after elem
//	}
//	reason := c.NoNextReason()
//
// A cursor is driven by one goroutine at a time.
type Cursor[T any] interface {
	Node

	// OnNext advances to the next element. While an element is pending,
	// repeated calls return the same result without advancing again.
	OnNext(ctx context.Context) (bool, error)

	// Next returns the pending element and consumes it. Fails with
	// common.ErrNoSuchElement when no element is pending.
	Next() (T, error)

	// Continuation returns the resumption point right after the last consumed
	// element, or the stop point once exhausted. A nil continuation after
	// SourceExhausted means nothing remains. Calling it while an element is
	// pending fails with common.ErrIllegalContinuationAccess.
	Continuation() ([]byte, error)

	// NoNextReason is only meaningful after OnNext returned false.
	NoNextReason() NoNextReason

	// Close releases the cursor and its children. It is idempotent.
	Close() error
}
