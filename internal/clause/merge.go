package clause

import "unicode/utf8"

// Merge combines two citations for the same stock and day. The clause sets
// are unioned and rendered canonically; when neither side yields a clause,
// LongerText decides. Merge is commutative.
func Merge(a, b string) string {
	union := ParseClauseIDs(a).Union(ParseClauseIDs(b))
	if !union.Empty() {
		return union.String()
	}
	return LongerText(a, b)
}

// LongerText is the fallback policy for unparseable citations: the text with
// more characters is assumed to carry more information. Equal lengths fall
// back to lexical order so the choice does not depend on argument order.
func LongerText(a, b string) string {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	switch {
	case la > lb:
		return a
	case lb > la:
		return b
	case a <= b:
		return a
	default:
		return b
	}
}
