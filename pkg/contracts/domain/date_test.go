package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"iso", "2024-10-15"},
		{"slashes", "2024/10/15"},
		{"compact", "20241015"},
		{"roc slashes", "113/10/15"},
		{"roc compact", "1131015"},
		{"padded", "  2024-10-15 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "113/13/01", "12"} {
		_, err := ParseDate(s)
		assert.Error(t, err, s)
	}
}

func TestParseROCDateRejectsImpossibleDays(t *testing.T) {
	for _, s := range []string{"113/02/31", "1130230", "112/02/29", "113/04/31"} {
		_, err := ParseROCDate(s)
		assert.Error(t, err, s)
	}

	// 2024 is a leap year.
	got, err := ParseROCDate("113/02/29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestDisposalPeriodContains(t *testing.T) {
	p := DisposalPeriod{
		Code:  "2330",
		Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, p.Contains(time.Date(2024, 1, 10, 13, 30, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC)))
}

func TestMarketTickerSuffix(t *testing.T) {
	assert.Equal(t, ".TW", MarketTWSE.TickerSuffix())
	assert.Equal(t, ".TWO", MarketTPEx.TickerSuffix())
	assert.Equal(t, ".TW", Market("").TickerSuffix())
}
