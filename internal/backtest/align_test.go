package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignTwo(t *testing.T) {
	nan := math.NaN()
	left := PriceTable{
		{Date: dayN(2), Open: 12, Close: 13},
		{Date: dayN(0), Open: 10, Close: 11},
		{Date: dayN(1), Open: 11, Close: 12},
		{Date: dayN(1), Open: 99, Close: 99}, // duplicate, first wins
		{Date: dayN(3), Open: 13, Close: 14},
		{Date: dayN(5), Open: nan, Close: 15}, // missing open
	}
	right := PriceTable{
		{Date: dayN(0), Open: 20, Close: 21},
		{Date: dayN(1), Open: 21, Close: 22},
		{Date: dayN(2), Open: 22, Close: nan}, // missing close
		{Date: dayN(2).Add(15 * time.Hour), Open: 23, Close: 24},
		{Date: dayN(5), Open: 25, Close: 26},
		{Date: dayN(6), Open: 26, Close: 27}, // not in left
	}

	got, err := AlignTwo(left, right)
	require.NoError(t, err)

	want := AlignedTable{
		mkRow(0, 10, 11, 20, 21),
		mkRow(1, 11, 12, 21, 22),
		mkRow(2, 12, 13, 23, 24),
	}
	assert.Equal(t, want, got)

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Date.After(got[i-1].Date), "dates must be strictly increasing")
	}
}

func TestAlignTwo_NoData(t *testing.T) {
	some := PriceTable{{Date: dayN(0), Open: 1, Close: 1}}

	tests := []struct {
		name  string
		left  PriceTable
		right PriceTable
		table string
	}{
		{"left empty", nil, some, "asset1"},
		{"right empty", some, PriceTable{}, "asset2"},
		{"no overlap", some, PriceTable{{Date: dayN(1), Open: 1, Close: 1}}, "aligned"},
		{"all missing", PriceTable{{Date: dayN(0), Open: math.NaN(), Close: 1}}, some, "aligned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AlignTwo(tt.left, tt.right)
			var nd *NoDataError
			require.True(t, errors.As(err, &nd), "expected NoDataError, got %v", err)
			assert.Equal(t, tt.table, nd.Table)
		})
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(dayN(3), dayN(3)))
	assert.Equal(t, 7, DaysBetween(dayN(0), dayN(7)))
	// time of day does not count
	assert.Equal(t, 1, DaysBetween(dayN(0).Add(23*time.Hour), dayN(1).Add(time.Hour)))
}
