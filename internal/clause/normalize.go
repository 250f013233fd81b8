package clause

import (
	"regexp"
	"strconv"
	"strings"
)

// typoReplacer fixes character variants that show up in exchange bulletins.
var typoReplacer = strings.NewReplacer(
	"弟", "第",
	"笫", "第",
	"欵", "款",
	"敫", "款",
	"　", " ",
)

var fullWidthReplacer = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
)

var chineseClausePattern = regexp.MustCompile(`第(\s*)([〇零一二兩三四五六七八九十]+)(\s*)款`)

var chineseDigits = map[rune]int{
	'〇': 0, '零': 0, '一': 1, '二': 2, '兩': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// Normalize canonicalizes a citation: typo variants are fixed, "第X款"
// with a Chinese numeral becomes "第N款", and full-width digits become ASCII.
// Normalize is idempotent and leaves canonical text untouched.
func Normalize(text string) string {
	text = typoReplacer.Replace(text)
	text = fullWidthReplacer.Replace(text)
	return chineseClausePattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := chineseClausePattern.FindStringSubmatch(m)
		n, ok := chineseNumeral(sub[2])
		if !ok {
			return m
		}
		return "第" + sub[1] + strconv.Itoa(n) + sub[3] + "款"
	})
}

// chineseNumeral converts numerals up to 九十九 (一, 十, 十二, 二十三).
func chineseNumeral(s string) (int, bool) {
	total, cur := 0, 0
	for _, r := range s {
		if r == '十' {
			if cur == 0 {
				cur = 1
			}
			total += cur * 10
			cur = 0
			continue
		}
		d, ok := chineseDigits[r]
		if !ok {
			return 0, false
		}
		cur = cur*10 + d
	}
	n := total + cur
	return n, n > 0 && n < 100
}
