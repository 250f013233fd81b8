// Package risk grades how close a flagged stock is to a disposal period by
// combining the simulator's horizon with price, volume and day-trade signals.
package risk

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
)

// Scorer turns a market snapshot into an Assessment. It never fails:
// missing market data degrades to blank price/volume fields.
type Scorer struct {
	params Params
	logger *slog.Logger
}

// NewScorer creates a scorer.
func NewScorer(params Params, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{params: params, logger: logger.With(slog.String("component", "risk"))}
}

// Score grades one stock.
func (s *Scorer) Score(in Input) Assessment {
	a := Assessment{
		PE:          in.Fundamentals.PE,
		PB:          in.Fundamentals.PB,
		DayTradePct: in.DayTrade.Today,
		HasDayTrade: in.DayTrade.Reported,
	}

	points := 0
	var triggers []string

	if in.Status == simulator.StatusNotSimulable {
		triggers = append(triggers, "特殊風險，需人工審查")
	}

	switch d := in.DaysToDisposal; {
	case in.Status == simulator.StatusTriggered || d == 0:
		points += 3
		triggers = append(triggers, "已達處置門檻")
	case d == 1:
		points += 3
		triggers = append(triggers, "再1日可能處置")
	case d == 2:
		points += 2
		triggers = append(triggers, "再2日可能處置")
	case d <= 4:
		points++
		triggers = append(triggers, fmt.Sprintf("再%d日可能處置", d))
	}

	if len(in.Bars) == 0 {
		s.logger.Warn("no price history, scoring without quote", slog.String("stock", in.Stock))
	} else {
		s.fillQuote(&a, in)

		switch {
		case a.Price <= 0:
		case a.PriceGapPct <= 0:
			points += 2
			triggers = append(triggers, "股價已超越警戒價")
		case a.PriceGapPct <= s.params.PriceGapNearPct:
			points++
			triggers = append(triggers, fmt.Sprintf("股價逼近警戒價(差%.1f%%)", a.PriceGapPct))
		}

		if a.WarningVolume > 0 && a.Volume >= a.WarningVolume*s.params.VolumeNearRatio {
			points++
			triggers = append(triggers, "成交量逼近警戒量")
		}
	}

	if dt := in.DayTrade; dt.Today >= s.params.DayTradeFloorPct &&
		(dt.Avg6 <= 0 || dt.Today >= dt.Avg6*s.params.DayTradeSpikeRatio) {
		points++
		triggers = append(triggers, fmt.Sprintf("當沖比異常(%.1f%%，6日均%.1f%%)", dt.Today, dt.Avg6))
	}

	switch {
	case in.Status == simulator.StatusNotSimulable, points >= s.params.HighPoints:
		a.Level = LevelHigh
	case points >= s.params.MediumPoints:
		a.Level = LevelMedium
	default:
		a.Level = LevelLow
	}

	if len(triggers) == 0 {
		a.Trigger = "無"
	} else {
		a.Trigger = strings.Join(triggers, "；")
	}
	return a
}

// fillQuote derives the warning thresholds from the trailing history.
func (s *Scorer) fillQuote(a *Assessment, in Input) {
	bars := in.Bars
	n := len(bars)
	today := bars[n-1]

	a.HasQuote = true
	a.Price = today.Close
	a.Volume = today.Volume
	a.TurnoverValue = today.Close * today.Volume
	if shares := in.Fundamentals.SharesOutstanding; shares > 0 {
		a.TurnoverRate = today.Volume / shares * 100
	}

	ref := n - 1 - s.params.PriceLookback
	if ref < 0 {
		ref = 0
	}
	a.WarningPrice = bars[ref].Close * (1 + s.params.PriceBand)
	if a.Price > 0 {
		a.PriceGapPct = (a.WarningPrice - a.Price) / a.Price * 100
	}

	start := n - 1 - s.params.VolumeLookback
	if start < 0 {
		start = 0
	}
	prior := bars[start : n-1]
	if len(prior) > 0 {
		var sum float64
		for _, b := range prior {
			sum += b.Volume
		}
		a.WarningVolume = sum / float64(len(prior)) * s.params.VolumeMultiple
	}
}
