package finance

import (
	"context"
	"sync"
	"time"

	"switchBotTrade/internal/backtest"
)

func d(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }

// fakeProvider serves canned tables and a scripted sequence of SessionOpen results.
type fakeProvider struct {
	mu     sync.Mutex
	daily  map[string]backtest.PriceTable
	errs   map[string]error
	opens  []openResult
	calls  int
	ranges [][2]time.Time
}

type openResult struct {
	open float64
	err  error
}

func (f *fakeProvider) DailyBars(_ context.Context, symbol string, start, end time.Time) (backtest.PriceTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, [2]time.Time{start, end})
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.daily[symbol], nil
}

func (f *fakeProvider) SessionOpen(_ context.Context, _ string, _ time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.opens) {
		i = len(f.opens) - 1
	}
	return f.opens[i].open, f.opens[i].err
}
