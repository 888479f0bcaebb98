package metadata

import (
	"context"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
)

// ValueMaintainer indexes grouping fields ++ suffix fields ++ primary key with
// an empty value.
type ValueMaintainer struct {
	index *Index
}

type ValueFactory struct{}

func (ValueFactory) IndexTypes() []string {
	return []string{common.IndexTypeValue}
}

func (ValueFactory) NewMaintainer(index *Index) (Maintainer, error) {
	if err := index.Validate(); err != nil {
		return nil, err
	}
	return &ValueMaintainer{index: index}, nil
}

func (m *ValueMaintainer) Index() *Index {
	return m.index
}

func (m *ValueMaintainer) key(rec *model.Record) (model.Tuple, error) {
	group, err := m.index.GroupingKey(rec)
	if err != nil {
		return nil, err
	}
	suffix, err := m.index.SuffixKey(rec)
	if err != nil {
		return nil, err
	}
	return group.Concat(suffix).Concat(rec.PrimaryKey), nil
}

func (m *ValueMaintainer) Update(ctx context.Context, w interfaces.StoreWriter, old, new *model.Record) error {
	if old != nil {
		key, err := m.key(old)
		if err != nil {
			return err
		}
		if err = w.Clear(ctx, m.index.Name, key); err != nil {
			return errors.WithMessagef(err, "clear %s", m.index.Name)
		}
	}
	if new != nil {
		key, err := m.key(new)
		if err != nil {
			return err
		}
		if err = w.Put(ctx, m.index.Name, key, model.Tuple{}); err != nil {
			return errors.WithMessagef(err, "put %s", m.index.Name)
		}
	}
	return nil
}

func (m *ValueMaintainer) Scan(ctx context.Context, store interfaces.Store, rng model.TupleRange, continuation []byte,
	props interfaces.ScanProperties) (interfaces.Cursor[model.IndexEntry], error) {
	return store.ScanIndex(ctx, m.index.Name, rng, continuation, props)
}
