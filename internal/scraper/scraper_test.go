package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
)

var concentrationPage = [][]string{
	{"股權分散表"},
	{"資料日期", "集保總張數", "總股東人數", ">400張大股東持有百分比", ">1000張人數", ">1000張大股東持有百分比", "收盤價"},
	{"20241011", "58,001", "41,230", "61.20", "12", "45.30", "512.0"},
	{"20241004", "58,001", "40,880", "60.95", "12", "44.80", "498.5"},
	{"20240927", "58,001", "40,100", "60.10", "11", "43.90", "470.0"},
	{"說明", "資料來源 集保結算所"},
}

func TestParseConcentration(t *testing.T) {
	c, err := parseConcentration(concentrationPage)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC), c.Date)
	assert.InDelta(t, 45.30, c.LargeHolderPct, 1e-9)
	assert.InDelta(t, 0.50, c.Change, 1e-9)
}

func TestParseConcentrationErrors(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{"empty page", nil},
		{"no header", [][]string{{"20241011", "45.30"}}},
		{"header only", concentrationPage[:2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConcentration(tt.rows)
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestScraperConcentration(t *testing.T) {
	s := New(config.ScraperConfig{URL: "https://example.test/StockHolders.aspx", Timeout: time.Second}, nil)
	var requested string
	s.fetch = func(_ context.Context, pageURL string) ([][]string, error) {
		requested = pageURL
		return concentrationPage, nil
	}

	c, err := s.Concentration(context.Background(), "3324")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/StockHolders.aspx?stock=3324", requested)
	assert.Equal(t, "3324", c.Code)

	s.fetch = func(context.Context, string) ([][]string, error) {
		return nil, errors.New("navigation failed")
	}
	_, err = s.Concentration(context.Background(), "3324")
	assert.ErrorContains(t, err, "navigation failed")
	s.Close()
}
