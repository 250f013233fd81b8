package clause

import (
	"regexp"
	"strconv"
	"strings"
)

var clausePattern = regexp.MustCompile(`第\s*(\d+)\s*款`)

// KeywordRule maps a phrase fragment to a clause id for citations that never
// spell out "第N款".
type KeywordRule struct {
	Phrase string
	ID     int
}

// KeywordFallback is consulted in order when the canonical pattern finds
// nothing; the first phrase contained in the text wins.
var KeywordFallback = []KeywordRule{
	{Phrase: "當日沖銷", ID: 10},
	{Phrase: "借券賣出", ID: 9},
	{Phrase: "股價淨值比", ID: 6},
	{Phrase: "本益比", ID: 6},
	{Phrase: "券資比", ID: 5},
	{Phrase: "週轉率", ID: 4},
	{Phrase: "成交量", ID: 3},
	{Phrase: "起迄兩個營業日", ID: 2},
	{Phrase: "收盤價漲跌百分比", ID: 1},
	{Phrase: "買賣集中", ID: 7},
}

// ParseClauseIDs extracts every cited clause id using the default keyword table.
func ParseClauseIDs(text string) ClauseSet {
	return ParseWithFallback(text, KeywordFallback)
}

// ParseWithFallback extracts clause ids, consulting fallback only when the
// "第N款" pattern finds nothing.
func ParseWithFallback(text string, fallback []KeywordRule) ClauseSet {
	normalized := Normalize(text)

	matches := clausePattern.FindAllStringSubmatch(normalized, -1)
	if len(matches) > 0 {
		ids := make([]int, 0, len(matches))
		for _, m := range matches {
			id, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
		return NewClauseSet(ids...)
	}

	for _, rule := range fallback {
		if rule.Phrase != "" && strings.Contains(normalized, rule.Phrase) {
			return NewClauseSet(rule.ID)
		}
	}
	return ClauseSet{}
}
