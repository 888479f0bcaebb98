package text

import (
	"testing"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTokenizer(t *testing.T) {
	tokens := DefaultTokenizer{}.Tokenize("The Quick, brown-fox 42!", 0, QueryMode)
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "42"}, tokens)
	assert.Empty(t, DefaultTokenizer{}.Tokenize("  ,.; ", 0, IndexMode))
}

func TestFilteringTokenizer(t *testing.T) {
	english := NewFilteringTokenizer("english", DefaultTokenizer{}, DefaultStopWords)
	tokens := english.Tokenize("The quick fox of Doom", 0, IndexMode)
	assert.Equal(t, []string{"", "quick", "fox", "", "doom"}, tokens)
	assert.Equal(t, "english", english.Name())
	assert.Equal(t, 0, english.MaxVersion())
}

func TestTokenizerRegistry(t *testing.T) {
	r := NewTokenizerRegistry(nil,
		DefaultTokenizer{},
		NewFilteringTokenizer(common.DefaultTokenizerName, DefaultTokenizer{}, []string{"x"}))
	assert.Equal(t, []string{common.DefaultTokenizerName}, r.Names())

	// 重名时保留第一个;
	tok, err := r.Get(common.DefaultTokenizerName)
	require.NoError(t, err)
	assert.IsType(t, DefaultTokenizer{}, tok)

	_, err = r.Get("klingon")
	assert.True(t, errors.Is(err, common.ErrUnknownTokenizer))

	_, err = tokenize(tok, "a b", 1, QueryMode)
	assert.True(t, errors.Is(err, common.ErrTokenizerVersion))
	tokens, err := tokenize(tok, "a b", 0, QueryMode)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tokens)
}

func TestComparison(t *testing.T) {
	a := AllWithin("quick fox", 3)
	b := AllWithin("quick fox", 3)
	assert.True(t, a.Equals(b))
	assert.Equal(t, a.PlanHash(), b.PlanHash())
	assert.Equal(t, `TEXT_CONTAINS_ALL_WITHIN "quick fox" WITHIN 3`, a.String())

	c := AllWithin("quick fox", 4)
	assert.False(t, a.Equals(c))
	assert.NotEqual(t, a.PlanHash(), c.PlanHash())

	pinned := All([]string{"quick", "fox"}).WithTokenizer("english")
	assert.Equal(t, `TEXT_CONTAINS_ALL ["quick", "fox"] USING english`, pinned.String())
	assert.False(t, pinned.Equals(All([]string{"quick", "fox"})))

	assert.True(t, ContainsAll.IsEquality())
	assert.True(t, ContainsPhrase.IsEquality())
	assert.False(t, ContainsPrefix.IsEquality())

	assert.Equal(t, `body TEXT_CONTAINS_PREFIX "pre"`, FieldText("body", Prefix("pre")).String())
	assert.Equal(t, "lang = en", FieldEquals("lang", "en").String())
}
