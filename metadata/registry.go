package metadata

import (
	"context"
	"log/slog"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/cursor"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
)

// Maintainer keeps one index in sync with record mutations and scans it.
type Maintainer interface {
	Index() *Index
	// Update replaces the entries of old with those of new. Either may be nil.
	Update(ctx context.Context, w interfaces.StoreWriter, old, new *model.Record) error
	Scan(ctx context.Context, store interfaces.Store, rng model.TupleRange, continuation []byte,
		props interfaces.ScanProperties) (interfaces.Cursor[model.IndexEntry], error)
}

type MaintainerFactory interface {
	IndexTypes() []string
	NewMaintainer(index *Index) (Maintainer, error)
}

// Registry maps index types to maintainer factories. It is built once and
// passed to whoever needs it.
type Registry struct {
	factories map[string]MaintainerFactory
	logger    *slog.Logger
}

// NewRegistry registers factories in order. When two factories claim the same
// type the first one wins.
func NewRegistry(logger *slog.Logger, factories ...MaintainerFactory) *Registry {
	r := &Registry{
		factories: make(map[string]MaintainerFactory),
		logger:    common.OrDefault(logger),
	}
	for _, f := range factories {
		for _, typ := range f.IndexTypes() {
			if _, ok := r.factories[typ]; ok {
				r.logger.Warn("duplicate index maintainer", slog.String(common.KeyIndexType, typ))
				continue
			}
			r.factories[typ] = f
		}
	}
	return r
}

func (r *Registry) Maintainer(index *Index) (Maintainer, error) {
	f, ok := r.factories[index.Type]
	if !ok {
		return nil, errors.Wrapf(common.ErrUnknownIndexType, "index %s has type %q", index.Name, index.Type)
	}
	return f.NewMaintainer(index)
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		out = append(out, typ)
	}
	return out
}

// NoOpMaintainer writes nothing and scans nothing.
type NoOpMaintainer struct {
	index *Index
}

type NoOpFactory struct{}

func (NoOpFactory) IndexTypes() []string {
	return []string{common.IndexTypeNoOp}
}

func (NoOpFactory) NewMaintainer(index *Index) (Maintainer, error) {
	return &NoOpMaintainer{index: index}, nil
}

func (m *NoOpMaintainer) Index() *Index {
	return m.index
}

func (m *NoOpMaintainer) Update(context.Context, interfaces.StoreWriter, *model.Record, *model.Record) error {
	return nil
}

func (m *NoOpMaintainer) Scan(context.Context, interfaces.Store, model.TupleRange, []byte,
	interfaces.ScanProperties) (interfaces.Cursor[model.IndexEntry], error) {
	return cursor.Empty[model.IndexEntry](), nil
}
