package metadata

import (
	"strconv"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/kebukeYi/TrainRecord/model"
	"github.com/pkg/errors"
)

// Index describes one index. For text indexes the key layout is
//
//	grouping fields ++ token ++ suffix fields ++ primary key
type Index struct {
	Name           string            `yaml:"name"`
	Type           string            `yaml:"type"`
	TextField      string            `yaml:"text_field"`
	GroupingFields []string          `yaml:"grouping_fields"`
	SuffixFields   []string          `yaml:"suffix_fields"`
	Options        map[string]string `yaml:"options"`
}

func (i *Index) Option(key string) (string, bool) {
	v, ok := i.Options[key]
	return v, ok
}

// GroupingCount is the number of leading grouping columns.
func (i *Index) GroupingCount() int {
	return len(i.GroupingFields)
}

// PrefixLen is the number of key columns before the suffix: grouping plus token.
func (i *Index) PrefixLen() int {
	return i.GroupingCount() + 1
}

// TokenizerName falls back to the default tokenizer when no option is set.
func (i *Index) TokenizerName() string {
	if name, ok := i.Option(common.TextTokenizerNameOption); ok && name != "" {
		return name
	}
	return common.DefaultTokenizerName
}

func (i *Index) TokenizerVersion() (int, error) {
	v, ok := i.Option(common.TextTokenizerVersionOption)
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(common.ErrTokenizerVersion, "index %s: %q", i.Name, v)
	}
	return n, nil
}

// MaxPositions is the occurrence count above which a token's position list is
// not kept. Zero keeps every list.
func (i *Index) MaxPositions() int {
	v, ok := i.Option(common.TextMaxPositionsOption)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// GroupingKey extracts the grouping columns of rec.
func (i *Index) GroupingKey(rec *model.Record) (model.Tuple, error) {
	return fieldTuple(i.Name, rec, i.GroupingFields)
}

func (i *Index) SuffixKey(rec *model.Record) (model.Tuple, error) {
	return fieldTuple(i.Name, rec, i.SuffixFields)
}

func fieldTuple(index string, rec *model.Record, fields []string) (model.Tuple, error) {
	out := make(model.Tuple, 0, len(fields))
	for _, f := range fields {
		v, ok := rec.Field(f)
		if !ok {
			return nil, errors.Wrapf(common.ErrMissingField, "index %s: field %s", index, f)
		}
		out = append(out, v)
	}
	if err := out.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "index %s", index)
	}
	return out, nil
}

func (i *Index) Validate() error {
	if i.Name == "" {
		return errors.New("index name can not be empty")
	}
	if i.Type == common.IndexTypeText && i.TextField == "" {
		return errors.Errorf("text index %s has no text field", i.Name)
	}
	_, err := i.TokenizerVersion()
	return err
}

func (i *Index) String() string {
	return i.Name + "<" + i.Type + ">"
}
