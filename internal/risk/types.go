package risk

import (
	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// Level is the categorical risk of entering disposal soon.
type Level string

const (
	LevelHigh   Level = "高"
	LevelMedium Level = "中"
	LevelLow    Level = "低"
)

// Params holds the regulatory constants and scoring thresholds.
type Params struct {
	PriceLookback      int     `yaml:"price_lookback" envconfig:"PRICE_LOOKBACK" validate:"min=1"`
	PriceBand          float64 `yaml:"price_band" envconfig:"PRICE_BAND" validate:"gt=0"`
	VolumeLookback     int     `yaml:"volume_lookback" envconfig:"VOLUME_LOOKBACK" validate:"min=1"`
	VolumeMultiple     float64 `yaml:"volume_multiple" envconfig:"VOLUME_MULTIPLE" validate:"gt=0"`
	PriceGapNearPct    float64 `yaml:"price_gap_near_pct" envconfig:"PRICE_GAP_NEAR_PCT" validate:"gte=0"`
	VolumeNearRatio    float64 `yaml:"volume_near_ratio" envconfig:"VOLUME_NEAR_RATIO" validate:"gt=0"`
	DayTradeSpikeRatio float64 `yaml:"day_trade_spike_ratio" envconfig:"DAY_TRADE_SPIKE_RATIO" validate:"gt=0"`
	DayTradeFloorPct   float64 `yaml:"day_trade_floor_pct" envconfig:"DAY_TRADE_FLOOR_PCT" validate:"gte=0"`
	HighPoints         int     `yaml:"high_points" envconfig:"HIGH_POINTS" validate:"min=1"`
	MediumPoints       int     `yaml:"medium_points" envconfig:"MEDIUM_POINTS" validate:"min=1,ltefield=HighPoints"`
}

// DefaultParams returns the standard scoring parameters.
func DefaultParams() Params {
	return Params{
		PriceLookback:      6,
		PriceBand:          0.32,
		VolumeLookback:     60,
		VolumeMultiple:     5,
		PriceGapNearPct:    5,
		VolumeNearRatio:    0.8,
		DayTradeSpikeRatio: 1.5,
		DayTradeFloorPct:   30,
		HighPoints:         4,
		MediumPoints:       2,
	}
}

// Input is one stock's market snapshot plus the simulator verdict.
type Input struct {
	Stock          string
	Bars           []domain.PriceBar // ascending, last is the evaluation day
	Fundamentals   domain.Fundamentals
	DaysToDisposal int // 99 when the simulator had no finite estimate
	Status         simulator.Status
	DayTrade       domain.DayTrade
}

// Assessment is the scorer output. Price and volume fields are only
// meaningful when HasQuote is true.
type Assessment struct {
	Level         Level   `json:"level"`
	Trigger       string  `json:"trigger"`
	HasQuote      bool    `json:"has_quote"`
	Price         float64 `json:"price"`
	WarningPrice  float64 `json:"warning_price"`
	PriceGapPct   float64 `json:"price_gap_pct"`
	Volume        float64 `json:"volume"`
	WarningVolume float64 `json:"warning_volume"`
	TurnoverValue float64 `json:"turnover_value"`
	TurnoverRate  float64 `json:"turnover_rate"`
	PE            float64 `json:"pe"`
	PB            float64 `json:"pb"`
	DayTradePct   float64 `json:"day_trade_pct"`
	HasDayTrade   bool    `json:"has_day_trade"`
}
