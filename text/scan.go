package text

import (
	"context"
	"encoding/binary"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/cursor"
	"github.com/kebukeYi/TrainRecord/interfaces"
	"github.com/kebukeYi/TrainRecord/metadata"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
)

// TextScan is a planned scan of one text index: the grouping prefix, the text
// comparison on the token column and an optional range over the suffix.
type TextScan struct {
	index      *metadata.Index
	grouping   model.Tuple
	comparison *Comparison
	suffix     *model.TupleRange
	opt        *Options
}

func NewTextScan(index *metadata.Index, grouping model.Tuple, comparison *Comparison, suffix *model.TupleRange,
	opt *Options) *TextScan {
	return &TextScan{
		index:      index,
		grouping:   grouping,
		comparison: comparison,
		suffix:     suffix,
		opt:        opt.orDefault(),
	}
}

func (s *TextScan) Index() *metadata.Index {
	return s.index
}

func (s *TextScan) Comparison() *Comparison {
	return s.comparison
}

// GetScanForQuery plans a text scan for the conjunction filters. It returns
// nil when the index cannot serve the query: a grouping column has no equality
// filter, no text filter targets the text field with a compatible tokenizer,
// or the query needs a sort. The second result holds the filters the scan
// does not satisfy.
func GetScanForQuery(index *metadata.Index, filters []Filter, hasSort bool, opt *Options) (*TextScan, []Filter) {
	if index.Type != common.IndexTypeText || hasSort {
		return nil, nil
	}
	used := make([]bool, len(filters))
	grouping := make(model.Tuple, 0, index.GroupingCount())
	for _, field := range index.GroupingFields {
		found := false
		for i, f := range filters {
			if !used[i] && f.Text == nil && f.Field == field {
				grouping = append(grouping, f.Equals)
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return nil, nil
		}
	}
	if grouping.Validate() != nil {
		return nil, nil
	}

	textAt := -1
	for i, f := range filters {
		if used[i] || f.Text == nil || f.Field != index.TextField {
			continue
		}
		if f.Text.TokenizerName != "" && f.Text.TokenizerName != index.TokenizerName() {
			continue
		}
		textAt = i
		break
	}
	if textAt < 0 {
		return nil, nil
	}
	used[textAt] = true

	var rest []Filter
	for i, f := range filters {
		if !used[i] {
			rest = append(rest, f)
		}
	}
	if len(grouping) == 0 {
		grouping = nil
	}
	return NewTextScan(index, grouping, filters[textAt].Text, nil, opt), rest
}

// tokens resolves the comparand to the query tokens, stop-word placeholders
// included.
func (s *TextScan) tokens() ([]string, error) {
	switch v := s.comparison.Comparand.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case string:
		t, err := s.opt.Tokenizers.Get(s.index.TokenizerName())
		if err != nil {
			return nil, err
		}
		version, err := s.index.TokenizerVersion()
		if err != nil {
			return nil, err
		}
		return tokenize(t, v, version, QueryMode)
	}
	return nil, errors.Wrapf(common.ErrIncompatibleComparand, "%T", s.comparison.Comparand)
}

// searchTokens drops stop-word placeholders and, when dedupe is set, repeated
// tokens after their first occurrence.
func searchTokens(tokens []string, dedupe bool) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if dedupe {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
		}
		out = append(out, tok)
	}
	return out
}

func (s *TextScan) keyFn() cursor.KeyFunc[model.IndexEntry] {
	prefixLen := len(s.grouping) + 1
	return func(e model.IndexEntry) model.Tuple {
		return e.Key.SubTuple(prefixLen, len(e.Key))
	}
}

func (s *TextScan) tokenRange(token string) model.TupleRange {
	var rng model.TupleRange
	if s.suffix != nil {
		rng = s.suffix.Prepend(model.TupleOf(token))
	} else {
		rng = model.AllOf(model.TupleOf(token))
	}
	if len(s.grouping) > 0 {
		rng = rng.Prepend(s.grouping)
	}
	return rng
}

func (s *TextScan) tokenFactory(ctx context.Context, store interfaces.Store, token string,
	props interfaces.ScanProperties) cursor.ChildFactory[model.IndexEntry] {
	rng := s.tokenRange(token)
	return func(continuation []byte) (interfaces.Cursor[model.IndexEntry], error) {
		return store.ScanIndex(ctx, s.index.Name, rng, continuation, props)
	}
}

func (s *TextScan) mergeOptions() *cursor.MergeOptions {
	return &cursor.MergeOptions{
		Executor: s.opt.Executor,
		Timer:    s.opt.Timer,
		Logger:   s.opt.Logger,
	}
}

// Scan opens a cursor over the index entries matching the comparison, in
// suffix order (reversed when props.Reverse). Skip applies to a scan that
// starts from a nil continuation, or resumes one whose skip was interrupted;
// the row limit applies to every call.
func (s *TextScan) Scan(ctx context.Context, store interfaces.Store, continuation []byte,
	props interfaces.ScanProperties) (interfaces.Cursor[model.IndexEntry], error) {
	withStopWords, err := s.tokens()
	if err != nil {
		return nil, err
	}
	// 短语里重复的词各占一个位置, 不去重;
	tokens := searchTokens(withStopWords, s.comparison.Type != ContainsPhrase)
	s.opt.Timer.CountScan(s.comparison.Type.String())
	logger := common.OrDefault(s.opt.Logger)
	logger.Debug("text scan",
		slog.String(common.KeyIndexName, s.index.Name),
		slog.String(common.KeyComparison, s.comparison.Type.String()),
		slog.Int(common.KeyTokenCount, len(tokens)),
		slog.Bool(common.KeyReverse, props.Reverse))
	if len(tokens) == 0 {
		return cursor.Empty[model.IndexEntry](), nil
	}

	if s.comparison.Type == ContainsPrefix {
		if s.suffix != nil {
			return nil, errors.WithStack(common.ErrPrefixWithSuffix)
		}
		if len(tokens) != 1 {
			return nil, errors.Wrapf(common.ErrPrefixTokenCount, "got %d", len(tokens))
		}
		rng := model.PrefixedBy(tokens[0])
		if len(s.grouping) > 0 {
			rng = rng.Prepend(s.grouping)
		}
		return store.ScanIndex(ctx, s.index.Name, rng, continuation, props)
	}
	if len(tokens) == 1 {
		return s.tokenFactory(ctx, store, tokens[0], props)(continuation)
	}

	continuation, skip, err := cursor.ResumeSkip(continuation, props.Execute.Skip)
	if err != nil {
		return nil, errors.WithMessage(err, s.String())
	}
	limit := props.Execute.ReturnedRowLimit
	keyFn := s.keyFn()

	switch s.comparison.Type {
	case ContainsAll:
		childProps := props.With(interfaces.ExecuteProperties.ClearSkipAndLimit)
		inter, err := cursor.NewIntersectionCursor(keyFn, props.Reverse,
			s.factories(ctx, store, tokens, childProps), continuation, s.mergeOptions())
		if err != nil {
			return nil, err
		}
		return cursor.ApplySkipLimit[model.IndexEntry](inter, skip, limit), nil

	case ContainsAny:
		widening := s.opt.UnionLimitWidening
		childProps := props.With(func(p interfaces.ExecuteProperties) interfaces.ExecuteProperties {
			return p.ClearSkipAndAdjustLimit(widening)
		})
		union, err := cursor.NewUnionCursor(keyFn, props.Reverse,
			s.factories(ctx, store, tokens, childProps), continuation, s.mergeOptions())
		if err != nil {
			return nil, err
		}
		return cursor.ApplySkipLimit[model.IndexEntry](union, skip, limit), nil

	case ContainsPhrase, ContainsAllWithin:
		var pred func([]model.IndexEntry) bool
		stage := "text_within"
		if s.comparison.Type == ContainsPhrase {
			stage = "text_phrase"
			pred = func(group []model.IndexEntry) bool {
				return containsPhrase(positionLists(group), withStopWords)
			}
		} else {
			maxDistance := s.comparison.MaxDistance
			pred = func(group []model.IndexEntry) bool {
				return containsAllWithin(positionLists(group), maxDistance)
			}
		}
		childProps := props.With(interfaces.ExecuteProperties.ClearSkipAndLimit)
		inter, err := cursor.NewIntersectionMultiCursor(keyFn, props.Reverse,
			s.factories(ctx, store, tokens, childProps), continuation, s.mergeOptions())
		if err != nil {
			return nil, err
		}
		filtered := cursor.NewInstrumentedFilterCursor[[]model.IndexEntry](inter, pred, s.opt.Timer, stage)
		first := cursor.NewMapCursor[[]model.IndexEntry](filtered, func(group []model.IndexEntry) model.IndexEntry {
			return group[0]
		})
		return cursor.ApplySkipLimit[model.IndexEntry](first, skip, limit), nil
	}
	return nil, errors.Wrapf(common.ErrUnsupportedComparison, "%s", s.comparison.Type)
}

func (s *TextScan) factories(ctx context.Context, store interfaces.Store, tokens []string,
	props interfaces.ScanProperties) []cursor.ChildFactory[model.IndexEntry] {
	out := make([]cursor.ChildFactory[model.IndexEntry], len(tokens))
	for i, tok := range tokens {
		out[i] = s.tokenFactory(ctx, store, tok, props)
	}
	return out
}

// CreatesDuplicates is true when one record can match through several
// tokens, which only happens for prefix matches.
func (s *TextScan) CreatesDuplicates() bool {
	return !s.comparison.Type.IsEquality()
}

func (s *TextScan) Equals(other *TextScan) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.index.Name != other.index.Name || !model.Equal(s.grouping, other.grouping) ||
		!s.comparison.Equals(other.comparison) {
		return false
	}
	if s.suffix == nil || other.suffix == nil {
		return s.suffix == other.suffix
	}
	return s.suffix.Equals(*other.suffix)
}

func (s *TextScan) PlanHash() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(s.index.Name)
	_, _ = d.Write(s.grouping.Pack())
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], s.comparison.PlanHash())
	_, _ = d.Write(scratch[:])
	if s.suffix != nil {
		binary.BigEndian.PutUint64(scratch[:], s.suffix.PlanHash())
		_, _ = d.Write(scratch[:])
	}
	return d.Sum64()
}

func (s *TextScan) String() string {
	out := "TextScan(" + s.index.Name
	if len(s.grouping) > 0 {
		out += " " + s.grouping.String()
	}
	out += " " + s.comparison.String()
	if s.suffix != nil {
		out += " " + s.suffix.String()
	}
	return out + ")"
}
