package finance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchBotTrade/internal/backtest"
)

func TestFetchPair(t *testing.T) {
	p := &fakeProvider{daily: map[string]backtest.PriceTable{
		"A": {{Date: d(2024, 1, 2), Open: 1, Close: 1}},
		"B": {{Date: d(2024, 1, 2), Open: 2, Close: 2}, {Date: d(2024, 1, 3), Open: 2, Close: 2}},
	}}
	pair, err := FetchPair(context.Background(), p, "A", "B", d(2024, 1, 1), d(2024, 1, 5))
	require.NoError(t, err)
	assert.Len(t, pair.Asset1, 1)
	assert.Len(t, pair.Asset2, 2)
}

func TestFetchPair_ErrorNamesSymbol(t *testing.T) {
	boom := errors.New("boom")
	p := &fakeProvider{
		daily: map[string]backtest.PriceTable{"A": {{Date: d(2024, 1, 2), Open: 1, Close: 1}}},
		errs:  map[string]error{"B": boom},
	}
	_, err := FetchPair(context.Background(), p, "A", "B", d(2024, 1, 1), d(2024, 1, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "B: boom", err.Error())
}

func TestLatestQuote(t *testing.T) {
	today := d(2024, 1, 8) // Monday
	p := &fakeProvider{
		daily: map[string]backtest.PriceTable{"VFV.TO": {
			{Date: d(2024, 1, 4), Open: 120, Close: 121},
			{Date: d(2024, 1, 5), Open: 121, Close: math.NaN()},
			// today's partial bar must not be taken as the previous close
			{Date: today, Open: 123, Close: 124},
		}},
		opens: []openResult{{open: 123.5}},
	}
	q, err := LatestQuote(context.Background(), p, "VFV.TO", today.Add(14*time.Hour), 3, 0)
	require.NoError(t, err)
	assert.Equal(t, today, q.Day)
	assert.Equal(t, d(2024, 1, 4), q.PrevCloseDate, "missing close is skipped")
	assert.Equal(t, 121.0, q.PrevClose)
	assert.Equal(t, 123.5, q.Open)
	assert.Equal(t, backtest.Quote{PrevClose: 121, Open: 123.5}, q.Quote())

	require.Len(t, p.ranges, 1)
	assert.Equal(t, today.AddDate(0, 0, -prevCloseLookback), p.ranges[0][0])
}

func TestLatestQuote_RetriesUntilOpen(t *testing.T) {
	p := &fakeProvider{
		daily: map[string]backtest.PriceTable{"X": {{Date: d(2024, 1, 5), Open: 10, Close: 10}}},
		opens: []openResult{{err: ErrNotAvailable}, {err: ErrNotAvailable}, {open: 10.2}},
	}
	q, err := LatestQuote(context.Background(), p, "X", d(2024, 1, 8), 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 10.2, q.Open)
	assert.Equal(t, 3, p.calls)
}

func TestLatestQuote_GivesUp(t *testing.T) {
	p := &fakeProvider{
		daily: map[string]backtest.PriceTable{"X": {{Date: d(2024, 1, 5), Open: 10, Close: 10}}},
		opens: []openResult{{err: ErrNotAvailable}},
	}
	_, err := LatestQuote(context.Background(), p, "X", d(2024, 1, 8), 2, time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAvailable)
	assert.Equal(t, 2, p.calls)
}

func TestLatestQuote_OtherErrorsAreNotRetried(t *testing.T) {
	boom := errors.New("boom")
	p := &fakeProvider{
		daily: map[string]backtest.PriceTable{"X": {{Date: d(2024, 1, 5), Open: 10, Close: 10}}},
		opens: []openResult{{err: boom}},
	}
	_, err := LatestQuote(context.Background(), p, "X", d(2024, 1, 8), 5, time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.calls)
}

func TestLatestQuote_NoPriorClose(t *testing.T) {
	p := &fakeProvider{daily: map[string]backtest.PriceTable{"X": {{Date: d(2024, 1, 8), Open: 10, Close: 10}}}}
	_, err := LatestQuote(context.Background(), p, "X", d(2024, 1, 8), 1, 0)
	var nd *backtest.NoDataError
	require.True(t, errors.As(err, &nd))
	assert.Equal(t, "X", nd.Table)
	assert.Equal(t, 0, p.calls, "open is not requested without a previous close")
}
