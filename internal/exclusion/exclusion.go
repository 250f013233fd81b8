// Package exclusion computes which trading days a stock spent inside a
// disposal period. Those days never count toward a new accumulation streak.
package exclusion

import (
	"fmt"
	"sort"
	"time"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

const component = "exclusion"

// Map is the set of excluded (stock, trading date) pairs.
type Map struct {
	byStock map[string][]time.Time // ascending, unique
}

// Build marks every calendar trading date inside each inclusive disposal
// period. Overlapping periods for the same stock are unioned.
func Build(calendar []time.Time, periods []domain.DisposalPeriod) (*Map, error) {
	if err := ValidateCalendar(calendar); err != nil {
		return nil, err
	}

	sets := make(map[string]map[int]struct{})
	for _, p := range periods {
		start, end := domain.Day(p.Start), domain.Day(p.End)
		if start.After(end) {
			return nil, apperrors.NewContractError(component,
				fmt.Sprintf("disposal period for %s starts %s after it ends %s",
					p.Code, domain.DateKey(start), domain.DateKey(end)))
		}

		lo := sort.Search(len(calendar), func(i int) bool {
			return !domain.Day(calendar[i]).Before(start)
		})
		for i := lo; i < len(calendar) && !domain.Day(calendar[i]).After(end); i++ {
			if sets[p.Code] == nil {
				sets[p.Code] = make(map[int]struct{})
			}
			sets[p.Code][i] = struct{}{}
		}
	}

	m := &Map{byStock: make(map[string][]time.Time, len(sets))}
	for code, idx := range sets {
		indices := make([]int, 0, len(idx))
		for i := range idx {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		dates := make([]time.Time, len(indices))
		for j, i := range indices {
			dates[j] = domain.Day(calendar[i])
		}
		m.byStock[code] = dates
	}
	return m, nil
}

// ValidateCalendar checks that trading dates are strictly increasing.
func ValidateCalendar(calendar []time.Time) error {
	for i := 1; i < len(calendar); i++ {
		if !domain.Day(calendar[i]).After(domain.Day(calendar[i-1])) {
			return apperrors.NewContractError(component,
				fmt.Sprintf("trading calendar not strictly ascending at index %d (%s after %s)",
					i, domain.DateKey(calendar[i]), domain.DateKey(calendar[i-1])))
		}
	}
	return nil
}

// IsExcluded reports whether stock was inside a disposal period on date.
// A nil map excludes nothing.
func (m *Map) IsExcluded(stock string, date time.Time) bool {
	if m == nil {
		return false
	}
	dates := m.byStock[stock]
	d := domain.Day(date)
	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(d) })
	return i < len(dates) && dates[i].Equal(d)
}

// LastExcludedOnOrBefore returns the latest excluded trading date for stock
// that is not after date.
func (m *Map) LastExcludedOnOrBefore(stock string, date time.Time) (time.Time, bool) {
	if m == nil {
		return time.Time{}, false
	}
	dates := m.byStock[stock]
	d := domain.Day(date)
	i := sort.Search(len(dates), func(i int) bool { return dates[i].After(d) })
	if i == 0 {
		return time.Time{}, false
	}
	return dates[i-1], true
}

// Count returns how many trading days are excluded for stock.
func (m *Map) Count(stock string) int {
	if m == nil {
		return 0
	}
	return len(m.byStock[stock])
}
