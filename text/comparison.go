package text

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ComparisonType is the closed set of text predicates.
type ComparisonType uint8

const (
	ContainsAll ComparisonType = iota
	ContainsAny
	ContainsPhrase
	ContainsPrefix
	ContainsAllWithin
)

func (t ComparisonType) String() string {
	switch t {
	case ContainsAll:
		return "TEXT_CONTAINS_ALL"
	case ContainsAny:
		return "TEXT_CONTAINS_ANY"
	case ContainsPhrase:
		return "TEXT_CONTAINS_PHRASE"
	case ContainsPrefix:
		return "TEXT_CONTAINS_PREFIX"
	case ContainsAllWithin:
		return "TEXT_CONTAINS_ALL_WITHIN"
	}
	return "UNKNOWN"
}

// IsEquality is false for predicates that match a range of tokens.
func (t ComparisonType) IsEquality() bool {
	return t != ContainsPrefix
}

// Comparison is a text predicate. Comparand is either a string, tokenized
// with the index tokenizer, or a []string of tokens.
type Comparison struct {
	Type      ComparisonType
	Comparand interface{}
	// TokenizerName, when set, must match the index tokenizer.
	TokenizerName string
	// MaxDistance only applies to ContainsAllWithin.
	MaxDistance int
}

func All(comparand interface{}) *Comparison {
	return &Comparison{Type: ContainsAll, Comparand: comparand}
}

func Any(comparand interface{}) *Comparison {
	return &Comparison{Type: ContainsAny, Comparand: comparand}
}

func Phrase(comparand interface{}) *Comparison {
	return &Comparison{Type: ContainsPhrase, Comparand: comparand}
}

func Prefix(prefix string) *Comparison {
	return &Comparison{Type: ContainsPrefix, Comparand: prefix}
}

func AllWithin(comparand interface{}, maxDistance int) *Comparison {
	return &Comparison{Type: ContainsAllWithin, Comparand: comparand, MaxDistance: maxDistance}
}

// WithTokenizer pins the comparison to a tokenizer name.
func (c *Comparison) WithTokenizer(name string) *Comparison {
	out := *c
	out.TokenizerName = name
	return &out
}

func (c *Comparison) comparandString() string {
	switch v := c.Comparand.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []string:
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	}
	return fmt.Sprintf("%T(%v)", c.Comparand, c.Comparand)
}

func (c *Comparison) Equals(other *Comparison) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Type == other.Type && c.TokenizerName == other.TokenizerName &&
		c.MaxDistance == other.MaxDistance && c.comparandString() == other.comparandString()
}

func (c *Comparison) PlanHash() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(c.Type.String())
	_, _ = d.WriteString(c.comparandString())
	_, _ = d.WriteString(c.TokenizerName)
	_, _ = d.WriteString(fmt.Sprint(c.MaxDistance))
	return d.Sum64()
}

func (c *Comparison) String() string {
	out := c.Type.String() + " " + c.comparandString()
	if c.Type == ContainsAllWithin {
		out += fmt.Sprintf(" WITHIN %d", c.MaxDistance)
	}
	if c.TokenizerName != "" {
		out += " USING " + c.TokenizerName
	}
	return out
}

// Filter is one conjunct of a query: an equality on a field, or a text
// comparison when Text is set.
type Filter struct {
	Field  string
	Equals interface{}
	Text   *Comparison
}

func FieldEquals(field string, value interface{}) Filter {
	return Filter{Field: field, Equals: value}
}

func FieldText(field string, c *Comparison) Filter {
	return Filter{Field: field, Text: c}
}

func (f Filter) String() string {
	if f.Text != nil {
		return f.Field + " " + f.Text.String()
	}
	return fmt.Sprintf("%s = %v", f.Field, f.Equals)
}
