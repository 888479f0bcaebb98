package text

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/metadata"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
)

// TextFactory builds maintainers for text indexes.
type TextFactory struct {
	Tokenizers *TokenizerRegistry
	Logger     *slog.Logger
}

func (f *TextFactory) IndexTypes() []string {
	return []string{common.IndexTypeText}
}

func (f *TextFactory) NewMaintainer(index *metadata.Index) (metadata.Maintainer, error) {
	if err := index.Validate(); err != nil {
		return nil, err
	}
	tokenizers := f.Tokenizers
	if tokenizers == nil {
		tokenizers = DefaultTokenizers(f.Logger)
	}
	t, err := tokenizers.Get(index.TokenizerName())
	if err != nil {
		return nil, errors.WithMessagef(err, "index %s", index.Name)
	}
	version, _ := index.TokenizerVersion()
	if version > t.MaxVersion() {
		return nil, errors.Wrapf(common.ErrTokenizerVersion, "index %s: %s supports up to %d, got %d",
			index.Name, t.Name(), t.MaxVersion(), version)
	}
	return &TextMaintainer{
		index:     index,
		tokenizer: t,
		version:   version,
		logger:    common.OrDefault(f.Logger),
	}, nil
}

// TextMaintainer writes one entry per distinct token of a record:
//
//	grouping ++ token ++ suffix ++ primary key -> (positions)
type TextMaintainer struct {
	index     *metadata.Index
	tokenizer Tokenizer
	version   int
	logger    *slog.Logger
}

func (m *TextMaintainer) Index() *metadata.Index {
	return m.index
}

// entries tokenizes the text field of rec. A record without the field has
// no entries.
func (m *TextMaintainer) entries(rec *model.Record) ([]model.IndexEntry, error) {
	raw, ok := rec.Field(m.index.TextField)
	if !ok || raw == nil {
		return nil, nil
	}
	text, ok := raw.(string)
	if !ok {
		return nil, errors.Wrapf(common.ErrIncompatibleComparand, "index %s: field %s is %T",
			m.index.Name, m.index.TextField, raw)
	}
	group, err := m.index.GroupingKey(rec)
	if err != nil {
		return nil, err
	}
	suffix, err := m.index.SuffixKey(rec)
	if err != nil {
		return nil, err
	}

	positions := make(map[string][]int)
	for pos, tok := range m.tokenizer.Tokenize(text, m.version, IndexMode) {
		if tok != "" {
			positions[tok] = append(positions[tok], pos)
		}
	}
	tokens := make([]string, 0, len(positions))
	for tok := range positions {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	maxPositions := m.index.MaxPositions()
	out := make([]model.IndexEntry, 0, len(tokens))
	for _, tok := range tokens {
		list := model.Tuple{}
		// 出现次数过多时不保存位置;
		if maxPositions == 0 || len(positions[tok]) <= maxPositions {
			for _, p := range positions[tok] {
				list = append(list, int64(p))
			}
		}
		key := group.Append(tok).Concat(suffix).Concat(rec.PrimaryKey)
		out = append(out, model.NewIndexEntry(m.index.Name, key, model.TupleOf(list)))
	}
	return out, nil
}

func (m *TextMaintainer) Update(ctx context.Context, w interfaces.StoreWriter, old, new *model.Record) error {
	if old != nil {
		entries, err := m.entries(old)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err = w.Clear(ctx, m.index.Name, e.Key); err != nil {
				return errors.WithMessagef(err, "clear %s", m.index.Name)
			}
		}
	}
	if new != nil {
		entries, err := m.entries(new)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err = w.Put(ctx, m.index.Name, e.Key, e.Value); err != nil {
				return errors.WithMessagef(err, "put %s", m.index.Name)
			}
		}
		m.logger.Debug("text index update",
			slog.String(common.KeyIndexName, m.index.Name),
			slog.String(common.KeyPrimaryKey, new.PrimaryKey.String()),
			slog.Int(common.KeyTokenCount, len(entries)))
	}
	return nil
}

func (m *TextMaintainer) Scan(ctx context.Context, store interfaces.Store, rng model.TupleRange, continuation []byte,
	props interfaces.ScanProperties) (interfaces.Cursor[model.IndexEntry], error) {
	return store.ScanIndex(ctx, m.index.Name, rng, continuation, props)
}
