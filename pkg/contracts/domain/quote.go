package domain

import (
	"sort"
	"time"
)

// PriceBar is one daily bar of a ticker's history.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"` // shares
}

// Fundamentals are the static valuation figures for a ticker.
type Fundamentals struct {
	PE                float64 `json:"pe"`
	PB                float64 `json:"pb"`
	SharesOutstanding float64 `json:"shares_outstanding"`
}

// DayTrade holds the day-trade ratio (percent of volume) for today and
// the average over the previous six sessions.
type DayTrade struct {
	Today float64 `json:"today"`
	Avg6  float64 `json:"avg6"`
	// Reported is false when no figure was published for the last session.
	Reported bool `json:"reported"`
}

// MarketQuote bundles everything the risk scorer needs for one ticker.
type MarketQuote struct {
	Code         string       `json:"code"`
	Bars         []PriceBar   `json:"bars"`
	Fundamentals Fundamentals `json:"fundamentals"`
	DayTrade     DayTrade     `json:"day_trade"`
}

// BarsThrough returns the prefix of ascending bars dated on or before date.
// A zero date keeps every bar.
func BarsThrough(bars []PriceBar, date time.Time) []PriceBar {
	if date.IsZero() {
		return bars
	}
	day := Day(date)
	n := sort.Search(len(bars), func(i int) bool { return Day(bars[i].Date).After(day) })
	return bars[:n]
}
