package interfaces

import (
	"context"

	"github.com/kebukeYi/TrainRecord/model"
)

// Store is the ordered key-value collaborator. ScanIndex is the only I/O
// primitive the cursor layer depends on.
type Store interface {
	ScanIndex(ctx context.Context, index string, rng model.TupleRange,
		continuation []byte, props ScanProperties) (Cursor[model.IndexEntry], error)
}

// StoreWriter is used by index maintainers to write entries.
type StoreWriter interface {
	Store
	Put(ctx context.Context, index string, key, value model.Tuple) error
	Clear(ctx context.Context, index string, key model.Tuple) error
}

// Executor runs child advances concurrently. Submit must not block; an error
// tells the caller to run the task inline.
type Executor interface {
	Submit(task func()) error
}
