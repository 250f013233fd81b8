package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// flatBars returns n bars at price with constant volume.
func flatBars(n int, price, volume float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = domain.PriceBar{
			Date: start.AddDate(0, 0, i), Open: price, High: price, Low: price, Close: price, Volume: volume,
		}
	}
	return bars
}

func TestScoreEmptyHistory(t *testing.T) {
	s := NewScorer(DefaultParams(), nil)

	a := s.Score(Input{
		Stock:          "6667",
		Fundamentals:   domain.Fundamentals{PE: 12.5, PB: 1.8},
		DaysToDisposal: 2,
		Status:         simulator.StatusEstimated,
	})

	assert.False(t, a.HasQuote)
	assert.Zero(t, a.Price)
	assert.Zero(t, a.WarningPrice)
	assert.Zero(t, a.Volume)
	assert.Zero(t, a.WarningVolume)
	assert.Equal(t, 12.5, a.PE)
	assert.Equal(t, LevelMedium, a.Level)
	assert.Equal(t, "再2日可能處置", a.Trigger)
}

func TestScoreWarningThresholds(t *testing.T) {
	s := NewScorer(DefaultParams(), nil)
	bars := flatBars(70, 100, 1000)
	bars[len(bars)-1].Close = 120
	bars[len(bars)-1].Volume = 2000

	a := s.Score(Input{
		Stock:          "2330",
		Bars:           bars,
		Fundamentals:   domain.Fundamentals{SharesOutstanding: 100000},
		DaysToDisposal: simulatorSentinel,
		Status:         simulator.StatusUnreachable,
	})

	assert.True(t, a.HasQuote)
	assert.Equal(t, 120.0, a.Price)
	assert.InDelta(t, 132.0, a.WarningPrice, 1e-9)
	assert.InDelta(t, 10.0, a.PriceGapPct, 1e-9)
	assert.InDelta(t, 5000.0, a.WarningVolume, 1e-9)
	assert.InDelta(t, 240000.0, a.TurnoverValue, 1e-9)
	assert.InDelta(t, 2.0, a.TurnoverRate, 1e-9)
	assert.Equal(t, LevelLow, a.Level)
	assert.Equal(t, "無", a.Trigger)
}

const simulatorSentinel = 99

func TestScoreLevels(t *testing.T) {
	s := NewScorer(DefaultParams(), nil)

	tests := []struct {
		name     string
		input    Input
		level    Level
		contains string
	}{
		{
			name:     "triggered",
			input:    Input{DaysToDisposal: 0, Status: simulator.StatusTriggered, Bars: flatBars(10, 50, 100)},
			level:    LevelMedium,
			contains: "已達處置門檻",
		},
		{
			name: "triggered and price beyond warning",
			input: func() Input {
				bars := flatBars(10, 50, 100)
				bars[9].Close = 70
				return Input{DaysToDisposal: 0, Status: simulator.StatusTriggered, Bars: bars}
			}(),
			level:    LevelHigh,
			contains: "股價已超越警戒價",
		},
		{
			name:     "not simulable is always high",
			input:    Input{DaysToDisposal: simulatorSentinel, Status: simulator.StatusNotSimulable},
			level:    LevelHigh,
			contains: "人工審查",
		},
		{
			name: "price near and day trade spike",
			input: func() Input {
				bars := flatBars(10, 50, 100)
				bars[9].Close = 63
				return Input{
					DaysToDisposal: 5, Status: simulator.StatusEstimated, Bars: bars,
					DayTrade: domain.DayTrade{Today: 45, Avg6: 20},
				}
			}(),
			level:    LevelMedium,
			contains: "當沖比異常",
		},
		{
			name: "day trade below floor ignored",
			input: Input{
				DaysToDisposal: simulatorSentinel, Status: simulator.StatusUnreachable,
				DayTrade: domain.DayTrade{Today: 25, Avg6: 5},
			},
			level:    LevelLow,
			contains: "無",
		},
		{
			name: "volume near warning",
			input: func() Input {
				bars := flatBars(10, 50, 100)
				bars[9].Volume = 450
				return Input{DaysToDisposal: 3, Status: simulator.StatusEstimated, Bars: bars}
			}(),
			level:    LevelMedium,
			contains: "成交量逼近警戒量",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := s.Score(tt.input)
			assert.Equal(t, tt.level, a.Level)
			assert.Contains(t, a.Trigger, tt.contains)
		})
	}
}

func TestScoreShortHistoryUsesEarliestBar(t *testing.T) {
	s := NewScorer(DefaultParams(), nil)
	bars := flatBars(1, 10, 100)

	a := s.Score(Input{Bars: bars, DaysToDisposal: simulatorSentinel, Status: simulator.StatusUnreachable})

	assert.True(t, a.HasQuote)
	assert.InDelta(t, 13.2, a.WarningPrice, 1e-9)
	assert.Zero(t, a.WarningVolume, "no prior bars, no volume baseline")
}

func TestScoreCarriesDayTradeAvailability(t *testing.T) {
	s := NewScorer(DefaultParams(), nil)
	in := Input{Bars: flatBars(10, 50, 100), DaysToDisposal: simulatorSentinel, Status: simulator.StatusUnreachable}

	assert.False(t, s.Score(in).HasDayTrade)

	in.DayTrade = domain.DayTrade{Today: 12.5, Reported: true}
	a := s.Score(in)
	assert.True(t, a.HasDayTrade)
	assert.InDelta(t, 12.5, a.DayTradePct, 1e-9)
}
