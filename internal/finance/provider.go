package finance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"switchBotTrade/internal/backtest"
)

// ErrNotAvailable means the provider has not published the requested bar yet.
var ErrNotAvailable = errors.New("bar not available yet")

// Provider is a source of bars for a single symbol. Daily bars are dated by exchange
// calendar day (see backtest.Day); missing values are NaN.
type Provider interface {
	DailyBars(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceTable, error)
	SessionOpen(ctx context.Context, symbol string, day time.Time) (float64, error)
}

// Pair holds the raw tables of both legs of a backtest.
type Pair struct {
	Asset1 backtest.PriceTable
	Asset2 backtest.PriceTable
}

// FetchPair loads both symbols concurrently. The first failure cancels the other
// request and is returned prefixed with its symbol.
func FetchPair(ctx context.Context, p Provider, symbol1, symbol2 string, start, end time.Time) (Pair, error) {
	var out Pair
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := p.DailyBars(gctx, symbol1, start, end)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol1, err)
		}
		out.Asset1 = t
		return nil
	})
	g.Go(func() error {
		t, err := p.DailyBars(gctx, symbol2, start, end)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol2, err)
		}
		out.Asset2 = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return Pair{}, err
	}
	return out, nil
}

// SessionQuote is the overnight gap reading of one symbol for one session.
type SessionQuote struct {
	Symbol        string
	Day           time.Time
	PrevCloseDate time.Time
	PrevClose     float64
	Open          float64
}

// Quote converts the reading into the engine's gap input.
func (q SessionQuote) Quote() backtest.Quote {
	return backtest.Quote{PrevClose: q.PrevClose, Open: q.Open}
}

// prevCloseLookback covers five sessions across a weekend and a holiday.
const prevCloseLookback = 10

// LatestQuote reads the last daily close strictly before day and the session open of
// day. The open is retried up to retries times, delay apart, while the provider
// reports ErrNotAvailable; other errors are returned at once.
func LatestQuote(ctx context.Context, p Provider, symbol string, day time.Time, retries int, delay time.Duration) (SessionQuote, error) {
	day = backtest.Day(day)
	q := SessionQuote{Symbol: symbol, Day: day}

	bars, err := p.DailyBars(ctx, symbol, day.AddDate(0, 0, -prevCloseLookback), day)
	if err != nil {
		return q, fmt.Errorf("%s: daily bars: %w", symbol, err)
	}
	found := false
	for i := len(bars) - 1; i >= 0; i-- {
		d := backtest.Day(bars[i].Date)
		c := bars[i].Close
		if !d.Before(day) || math.IsNaN(c) || c <= 0 {
			continue
		}
		q.PrevCloseDate, q.PrevClose = d, c
		found = true
		break
	}
	if !found {
		return q, &backtest.NoDataError{Table: symbol, Reason: "no daily close before " + day.Format("2006-01-02")}
	}

	if retries < 1 {
		retries = 1
	}
	for attempt := 1; ; attempt++ {
		open, err := p.SessionOpen(ctx, symbol, day)
		if err == nil {
			q.Open = open
			return q, nil
		}
		if !errors.Is(err, ErrNotAvailable) || attempt >= retries {
			return q, fmt.Errorf("%s: session open: %w", symbol, err)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return q, err
		}
	}
}
