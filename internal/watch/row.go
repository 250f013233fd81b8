package watch

import (
	"strconv"
	"time"

	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// Header is the fixed column contract of the report consumed downstream.
var Header = []string{
	"代號", "名稱", "連續天數", "近30日次數", "近10日次數", "最後日期",
	"30日狀態", "10日狀態", "預估天數", "觸發原因", "風險等級", "觸發條件",
	"目前價", "警戒價", "價差%", "目前量", "警戒量", "成交值", "週轉率",
	"PE", "PB", "當沖%",
}

// UnresolvedDays is shown and scored when the simulator has no finite estimate.
const UnresolvedDays = 99

// Row is one evaluated stock.
type Row struct {
	Code       string           `json:"code"`
	Name       string           `json:"name"`
	Market     domain.Market    `json:"market"`
	Streak     int              `json:"streak"`
	Count30    int              `json:"count_30"`
	Count10    int              `json:"count_10"`
	LastDate   time.Time        `json:"last_date"`
	Bits30     string           `json:"bits_30"`
	Bits10     string           `json:"bits_10"`
	Simulation simulator.Result `json:"simulation"`
	Risk       risk.Assessment  `json:"risk"`
	Degraded   bool             `json:"degraded"`
}

// EstimatedDays renders the simulator horizon for the report.
func (r Row) EstimatedDays() string {
	switch r.Simulation.Status {
	case simulator.StatusEstimated, simulator.StatusTriggered:
		return strconv.Itoa(r.Simulation.Days)
	case simulator.StatusNotSimulable:
		return "N/A"
	default:
		return strconv.Itoa(UnresolvedDays)
	}
}

// Values renders the row in Header order.
func (r Row) Values() []string {
	a := r.Risk
	quote := func(v float64, prec int) string {
		if !a.HasQuote {
			return ""
		}
		return strconv.FormatFloat(v, 'f', prec, 64)
	}
	optional := func(v float64) string {
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	}

	dayTrade := ""
	if a.HasQuote && a.HasDayTrade {
		dayTrade = strconv.FormatFloat(a.DayTradePct, 'f', 2, 64)
	}

	lastDate := ""
	if !r.LastDate.IsZero() {
		lastDate = domain.DateKey(r.LastDate)
	}

	return []string{
		r.Code,
		r.Name,
		strconv.Itoa(r.Streak),
		strconv.Itoa(r.Count30),
		strconv.Itoa(r.Count10),
		lastDate,
		r.Bits30,
		r.Bits10,
		r.EstimatedDays(),
		r.Simulation.Reason,
		string(a.Level),
		a.Trigger,
		quote(a.Price, 2),
		quote(a.WarningPrice, 2),
		quote(a.PriceGapPct, 2),
		quote(a.Volume, 0),
		quote(a.WarningVolume, 0),
		quote(a.TurnoverValue, 0),
		quote(a.TurnoverRate, 2),
		optional(a.PE),
		optional(a.PB),
		dayTrade,
	}
}
