package clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClauseIDs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int
	}{
		{"single", "第3款", []int{3}},
		{"multiple", "第1款、第3款", []int{1, 3}},
		{"unordered with duplicates", "第8款 第2款 第8款", []int{2, 8}},
		{"whitespace tolerant", "第 11 款", []int{11}},
		{"chinese numerals", "第一款及第十款", []int{1, 10}},
		{"full width", "第１款", []int{1}},
		{"keyword fallback", "最近六個營業日當日沖銷成交量占比過高", []int{10}},
		{"keyword order", "週轉率及成交量異常", []int{4}},
		{"pattern beats keyword", "第2款 週轉率", []int{2}},
		{"nothing recognized", "其他異常情形", []int{}},
		{"empty", "", []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseClauseIDs(tt.input).IDs())
		})
	}
}

func TestParseNormalizedEquivalence(t *testing.T) {
	inputs := []string{
		"第一款、第３款",
		"弟十四欵",
		"第 二 款與第１３款",
		"本益比偏高",
	}
	for _, s := range inputs {
		assert.True(t, ParseClauseIDs(Normalize(s)).Equal(ParseClauseIDs(s)), s)
	}
}

func TestParseWithFallbackCustomTable(t *testing.T) {
	table := []KeywordRule{{Phrase: "異常", ID: 12}}

	assert.Equal(t, []int{12}, ParseWithFallback("其他異常情形", table).IDs())
	assert.True(t, ParseWithFallback("其他異常情形", nil).Empty())
}

func TestClauseSet(t *testing.T) {
	s := NewClauseSet(3, 1, 3, 0, -2)

	assert.Equal(t, []int{1, 3}, s.IDs())
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(3))
	assert.False(t, s.Has(2))
	assert.Equal(t, "第1款、第3款", s.String())

	u := s.Union(NewClauseSet(2))
	assert.Equal(t, []int{1, 2, 3}, u.IDs())
	assert.Equal(t, []int{1, 3}, s.IDs(), "union must not mutate receiver")

	assert.True(t, ClauseSet{}.Empty())
	assert.Equal(t, "", ClauseSet{}.String())
}
