package clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"canonical unchanged", "第1款、第3款", "第1款、第3款"},
		{"chinese numeral", "第一款", "第1款"},
		{"teen numeral", "第十三款", "第13款"},
		{"ten", "第十款", "第10款"},
		{"twenty something", "第二十一款", "第21款"},
		{"full width digits", "第１２款", "第12款"},
		{"typo variants", "弟三欵", "第3款"},
		{"keeps whitespace", "第 二 款", "第 2 款"},
		{"zero numeral left alone", "第零款", "第零款"},
		{"unrelated text", "股價異常", "股價異常"},
		{"ideographic space", "第　1款", "第 1款"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"第一款、第３款及弟十四欵",
		"第 二 款",
		"最近六個營業日累積收盤價漲跌百分比",
		"",
		"第零款第十款",
	}
	for _, s := range inputs {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), s)
	}
}

func TestChineseNumeral(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"一", 1, true},
		{"九", 9, true},
		{"十", 10, true},
		{"十四", 14, true},
		{"二十", 20, true},
		{"九十九", 99, true},
		{"零", 0, false},
		{"百", 0, false},
	}
	for _, tt := range tests {
		got, ok := chineseNumeral(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.input)
		}
	}
}
