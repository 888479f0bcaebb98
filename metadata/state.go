package metadata

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

type IndexState uint8

const (
	Readable IndexState = iota
	WriteOnly
	Disabled
)

func (s IndexState) String() string {
	switch s {
	case Readable:
		return "READABLE"
	case WriteOnly:
		return "WRITE_ONLY"
	case Disabled:
		return "DISABLED"
	}
	return "UNKNOWN"
}

// StoreState is an immutable snapshot of index states. Indexes that are not
// listed are readable.
type StoreState struct {
	version uint64
	states  map[string]IndexState
}

// EmptyState has every index readable.
var EmptyState = &StoreState{}

func NewStoreState(states map[string]IndexState) *StoreState {
	copied := make(map[string]IndexState, len(states))
	for name, st := range states {
		if st != Readable {
			copied[name] = st
		}
	}
	return &StoreState{states: copied}
}

func (s *StoreState) Version() uint64 {
	return s.version
}

func (s *StoreState) State(index string) IndexState {
	if st, ok := s.states[index]; ok {
		return st
	}
	return Readable
}

func (s *StoreState) IsReadable(index string) bool {
	return s.State(index) == Readable
}

func (s *StoreState) IsWriteOnly(index string) bool {
	return s.State(index) == WriteOnly
}

func (s *StoreState) IsDisabled(index string) bool {
	return s.State(index) == Disabled
}

func (s *StoreState) AllReadable() bool {
	return len(s.states) == 0
}

// CompatibleWith reports whether every index has the same readability in both
// snapshots, so plans made against one are valid against the other.
func (s *StoreState) CompatibleWith(other *StoreState) bool {
	for name, st := range s.states {
		if (st == Readable) != other.IsReadable(name) {
			return false
		}
	}
	for name, st := range other.states {
		if (st == Readable) != s.IsReadable(name) {
			return false
		}
	}
	return true
}

// WithIndexesInState returns a new snapshot; the receiver is unchanged.
func (s *StoreState) WithIndexesInState(names []string, state IndexState) *StoreState {
	next := make(map[string]IndexState, len(s.states)+len(names))
	for name, st := range s.states {
		next[name] = st
	}
	for _, name := range names {
		if state == Readable {
			delete(next, name)
		} else {
			next[name] = state
		}
	}
	return &StoreState{version: s.version + 1, states: next}
}

func (s *StoreState) WriteOnlyNames() []string {
	return s.namesIn(WriteOnly)
}

func (s *StoreState) DisabledNames() []string {
	return s.namesIn(Disabled)
}

func (s *StoreState) namesIn(state IndexState) []string {
	var out []string
	for name, st := range s.states {
		if st == state {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *StoreState) String() string {
	names := make([]string, 0, len(s.states))
	for name := range s.states {
		names = append(names, name)
	}
	sort.Strings(names)
	out := fmt.Sprintf("StoreState(v%d", s.version)
	for _, name := range names {
		out += fmt.Sprintf(" %s=%s", name, s.states[name])
	}
	return out + ")"
}

// StateHolder publishes snapshots. Readers borrow the current snapshot through
// Read; a Publish waits for running reads to finish, so no read ever sees the
// snapshot replaced underneath it.
type StateHolder struct {
	mu      sync.RWMutex
	current atomic.Pointer[StoreState]
}

func NewStateHolder(initial *StoreState) *StateHolder {
	if initial == nil {
		initial = EmptyState
	}
	h := &StateHolder{}
	h.current.Store(initial)
	return h
}

// Read calls fn with the current snapshot held for the whole call.
func (h *StateHolder) Read(fn func(*StoreState) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.current.Load())
}

// Load returns the current snapshot without holding it.
func (h *StateHolder) Load() *StoreState {
	return h.current.Load()
}

func (h *StateHolder) Publish(next *StoreState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current.Store(next)
}

// Update derives and publishes a new snapshot from the current one.
func (h *StateHolder) Update(fn func(*StoreState) *StoreState) *StoreState {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := fn(h.current.Load())
	h.current.Store(next)
	return next
}
