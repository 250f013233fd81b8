package watch

import (
	"github.com/M1229012/Stock-V116-sub000/internal/clause"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// DayRecord is one stock's citation on one trading day.
type DayRecord struct {
	Code    string
	Date    string // domain.DateKey
	Clauses clause.ClauseSet
	Text    string
}

// stockInfo carries the descriptive fields of a stock plus its citations.
type stockInfo struct {
	code    string
	name    string
	market  domain.Market
	records map[string]DayRecord
}

// Dedupe merges rows sharing (date, code) with clause.Merge. The result
// keeps the position of each key's first occurrence.
func Dedupe(rows []domain.LogRow) []domain.LogRow {
	index := make(map[string]int, len(rows))
	out := make([]domain.LogRow, 0, len(rows))
	for _, row := range rows {
		key := row.Key()
		if i, ok := index[key]; ok {
			out[i].ClauseText = clause.Merge(out[i].ClauseText, row.ClauseText)
			if out[i].Name == "" {
				out[i].Name = row.Name
			}
			if out[i].Market == "" {
				out[i].Market = row.Market
			}
			continue
		}
		index[key] = len(out)
		out = append(out, row)
	}
	return out
}

// groupByStock indexes deduplicated rows per stock, returning stocks in
// first-appearance order. Later rows refresh the name and market.
func groupByStock(rows []domain.LogRow) ([]string, map[string]*stockInfo) {
	var order []string
	stocks := make(map[string]*stockInfo)
	for _, row := range rows {
		info, ok := stocks[row.Code]
		if !ok {
			info = &stockInfo{code: row.Code, records: make(map[string]DayRecord)}
			stocks[row.Code] = info
			order = append(order, row.Code)
		}
		if row.Name != "" {
			info.name = row.Name
		}
		if row.Market != "" {
			info.market = row.Market
		}
		date := domain.DateKey(row.Date)
		info.records[date] = DayRecord{
			Code:    row.Code,
			Date:    date,
			Clauses: clause.ParseClauseIDs(row.ClauseText),
			Text:    row.ClauseText,
		}
	}
	return order, stocks
}
