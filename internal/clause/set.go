package clause

import (
	"sort"
	"strconv"
	"strings"
)

// ClauseSet is an immutable, sorted set of clause identifiers.
type ClauseSet struct {
	ids []int
}

// NewClauseSet builds a set from ids, dropping non-positive values and duplicates.
func NewClauseSet(ids ...int) ClauseSet {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return ClauseSet{ids: out}
}

// Has reports whether id is in the set.
func (s ClauseSet) Has(id int) bool {
	i := sort.SearchInts(s.ids, id)
	return i < len(s.ids) && s.ids[i] == id
}

// Union returns the set of ids in either s or other.
func (s ClauseSet) Union(other ClauseSet) ClauseSet {
	merged := make([]int, 0, len(s.ids)+len(other.ids))
	merged = append(merged, s.ids...)
	merged = append(merged, other.ids...)
	return NewClauseSet(merged...)
}

// IDs returns a copy of the ids in ascending order.
func (s ClauseSet) IDs() []int {
	out := make([]int, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of ids.
func (s ClauseSet) Len() int { return len(s.ids) }

// Empty reports whether no clause was recognized.
func (s ClauseSet) Empty() bool { return len(s.ids) == 0 }

// Equal reports whether both sets hold the same ids.
func (s ClauseSet) Equal(other ClauseSet) bool {
	if len(s.ids) != len(other.ids) {
		return false
	}
	for i := range s.ids {
		if s.ids[i] != other.ids[i] {
			return false
		}
	}
	return true
}

// String renders the canonical citation, e.g. "第1款、第3款".
func (s ClauseSet) String() string {
	parts := make([]string, len(s.ids))
	for i, id := range s.ids {
		parts[i] = "第" + strconv.Itoa(id) + "款"
	}
	return strings.Join(parts, "、")
}
