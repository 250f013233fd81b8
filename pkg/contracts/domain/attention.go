package domain

import (
	"time"
)

// Market identifies the venue a stock is listed on.
type Market string

const (
	// MarketTWSE is the main board (上市)
	MarketTWSE Market = "上市"
	// MarketTPEx is the OTC board (上櫃)
	MarketTPEx Market = "上櫃"
)

// TickerSuffix returns the quote-provider suffix for the market.
func (m Market) TickerSuffix() string {
	if m == MarketTPEx {
		return ".TWO"
	}
	return ".TW"
}

// LogRow is one attention citation as stored in the historical log.
// One row per (stock, date); duplicates are merged before use.
type LogRow struct {
	Date       time.Time `json:"date" validate:"required"`
	Market     Market    `json:"market"`
	Code       string    `json:"code" validate:"required,max=10"`
	Name       string    `json:"name"`
	ClauseText string    `json:"clause_text"`
}

// Key returns the (date, code) identity used for deduplication.
func (r LogRow) Key() string {
	return DateKey(r.Date) + "|" + r.Code
}

// DisposalPeriod is a historical or active forced-disposition window.
type DisposalPeriod struct {
	Code  string    `json:"code" validate:"required"`
	Name  string    `json:"name,omitempty"`
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

// Contains reports whether date falls inside the inclusive period.
func (p DisposalPeriod) Contains(date time.Time) bool {
	d := Day(date)
	return !d.Before(Day(p.Start)) && !d.After(Day(p.End))
}
