package clause

import "sort"

// Rule describes how one clause id affects escalation.
type Rule struct {
	Counts          bool // contributes to an accumulation streak
	SpecialRisk     bool // outcome rests on discretionary review
	ExtendsDisposal bool // lengthens the resulting disposal period
}

// Rules is the id -> Rule table consulted by the accumulation classifier.
type Rules struct {
	table map[int]Rule
}

// Default clause classification for the exchange's attention notices.
var (
	DefaultCountingIDs  = []int{1, 2, 3, 4, 5, 6, 7, 8}
	DefaultSpecialIDs   = []int{14}
	DefaultExtendingIDs = []int{13}
)

// DefaultRules returns the standard classification table.
func DefaultRules() *Rules {
	return NewRules(DefaultCountingIDs, DefaultSpecialIDs, DefaultExtendingIDs)
}

// NewRules builds a table from the three id lists. Ids absent from every list
// are informational only.
func NewRules(counting, special, extending []int) *Rules {
	table := make(map[int]Rule)
	for _, id := range counting {
		r := table[id]
		r.Counts = true
		table[id] = r
	}
	for _, id := range special {
		r := table[id]
		r.SpecialRisk = true
		table[id] = r
	}
	for _, id := range extending {
		r := table[id]
		r.ExtendsDisposal = true
		table[id] = r
	}
	return &Rules{table: table}
}

// Lookup returns the rule for id; unknown ids get the zero Rule.
func (r *Rules) Lookup(id int) Rule {
	return r.table[id]
}

// IsValidAccumulationDay reports whether any cited clause counts toward escalation.
func (r *Rules) IsValidAccumulationDay(s ClauseSet) bool {
	for _, id := range s.ids {
		if r.table[id].Counts {
			return true
		}
	}
	return false
}

// IsSpecialRiskDay reports whether the day cites a discretionary-review clause.
func (r *Rules) IsSpecialRiskDay(s ClauseSet) bool {
	for _, id := range s.ids {
		if r.table[id].SpecialRisk {
			return true
		}
	}
	return false
}

// HasLengthExtendingClause reports whether any day cites a clause that
// lengthens the disposal period.
func (r *Rules) HasLengthExtendingClause(days []ClauseSet) bool {
	for _, s := range days {
		for _, id := range s.ids {
			if r.table[id].ExtendsDisposal {
				return true
			}
		}
	}
	return false
}

// ExtendingIDs lists the length-extending clause ids in ascending order.
func (r *Rules) ExtendingIDs() []int {
	var ids []int
	for id, rule := range r.table {
		if rule.ExtendsDisposal {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}
