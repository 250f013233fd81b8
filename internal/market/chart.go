package market

import (
	"fmt"
	"time"

	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// bars converts a chart payload into ascending daily bars. Days without a
// close are skipped; a missing volume counts as zero.
func (r chartResponse) bars() ([]domain.PriceBar, error) {
	if e := r.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(r.Chart.Result) == 0 || len(r.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}
	res := r.Chart.Result[0]
	q := res.Indicators.Quote[0]

	value := func(s []*float64, i int) float64 {
		if i < len(s) && s[i] != nil {
			return *s[i]
		}
		return 0
	}

	bars := make([]domain.PriceBar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		date := domain.Day(time.Unix(ts, 0).In(domain.Taipei))
		if n := len(bars); n > 0 && !date.After(bars[n-1].Date) {
			// Intraday refresh of the last session; keep the newest values.
			bars = bars[:n-1]
		}
		bars = append(bars, domain.PriceBar{
			Date:   date,
			Open:   value(q.Open, i),
			High:   value(q.High, i),
			Low:    value(q.Low, i),
			Close:  *q.Close[i],
			Volume: value(q.Volume, i),
		})
	}
	return bars, nil
}
