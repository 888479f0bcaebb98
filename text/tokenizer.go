package text

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/pkg/errors"
)

type TokenizerMode uint8

const (
	// IndexMode tokenizes record text when entries are written.
	IndexMode TokenizerMode = iota
	// QueryMode tokenizes query operands.
	QueryMode
)

// Tokenizer splits text into tokens. Stop words stay in the output as ""
// so that positions still count them.
type Tokenizer interface {
	Name() string
	// MaxVersion is the newest version this tokenizer can produce; versions
	// start at zero.
	MaxVersion() int
	Tokenize(text string, version int, mode TokenizerMode) []string
}

// DefaultTokenizer lowercases and splits on anything that is not a letter or digit.
type DefaultTokenizer struct{}

func (DefaultTokenizer) Name() string {
	return common.DefaultTokenizerName
}

func (DefaultTokenizer) MaxVersion() int {
	return 0
}

func (DefaultTokenizer) Tokenize(text string, _ int, _ TokenizerMode) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in", "into", "is", "it",
	"no", "not", "of", "on", "or", "such", "that", "the", "their", "then", "there", "these",
	"they", "this", "to", "was", "will", "with",
}

// FilteringTokenizer blanks stop words produced by its base tokenizer.
type FilteringTokenizer struct {
	name      string
	base      Tokenizer
	stopWords map[string]struct{}
}

func NewFilteringTokenizer(name string, base Tokenizer, stopWords []string) *FilteringTokenizer {
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &FilteringTokenizer{name: name, base: base, stopWords: stop}
}

func (t *FilteringTokenizer) Name() string {
	return t.name
}

func (t *FilteringTokenizer) MaxVersion() int {
	return t.base.MaxVersion()
}

func (t *FilteringTokenizer) Tokenize(text string, version int, mode TokenizerMode) []string {
	tokens := t.base.Tokenize(text, version, mode)
	for i, tok := range tokens {
		if _, ok := t.stopWords[tok]; ok {
			tokens[i] = ""
		}
	}
	return tokens
}

// TokenizerRegistry is the fixed set of tokenizers known to a process.
type TokenizerRegistry struct {
	tokenizers map[string]Tokenizer
}

// NewTokenizerRegistry registers tokenizers in order; for duplicate names the
// first one wins.
func NewTokenizerRegistry(logger *slog.Logger, tokenizers ...Tokenizer) *TokenizerRegistry {
	logger = common.OrDefault(logger)
	r := &TokenizerRegistry{tokenizers: make(map[string]Tokenizer, len(tokenizers))}
	for _, t := range tokenizers {
		if _, ok := r.tokenizers[t.Name()]; ok {
			logger.Warn("duplicate text tokenizer", slog.String(common.KeyTokenizer, t.Name()))
			continue
		}
		r.tokenizers[t.Name()] = t
	}
	return r
}

// DefaultTokenizers holds the default tokenizer and an English stop-word filter.
func DefaultTokenizers(logger *slog.Logger) *TokenizerRegistry {
	return NewTokenizerRegistry(logger,
		DefaultTokenizer{},
		NewFilteringTokenizer("english", DefaultTokenizer{}, DefaultStopWords))
}

func (r *TokenizerRegistry) Get(name string) (Tokenizer, error) {
	t, ok := r.tokenizers[name]
	if !ok {
		return nil, errors.Wrapf(common.ErrUnknownTokenizer, "%q", name)
	}
	return t, nil
}

func (r *TokenizerRegistry) Names() []string {
	out := make([]string, 0, len(r.tokenizers))
	for name := range r.tokenizers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// tokenize checks the version against the tokenizer before running it.
func tokenize(t Tokenizer, text string, version int, mode TokenizerMode) ([]string, error) {
	if version < 0 || version > t.MaxVersion() {
		return nil, errors.Wrapf(common.ErrTokenizerVersion, "%s supports up to %d, got %d",
			t.Name(), t.MaxVersion(), version)
	}
	return t.Tokenize(text, version, mode), nil
}
