package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"switchBotTrade/internal/backtest"
)

// AlpacaProvider reads US equity bars from the Alpaca market data API. Alpaca does not
// list TSX symbols; use it for US pairs.
type AlpacaProvider struct {
	client *marketdata.Client
	feed   marketdata.Feed
}

func NewAlpacaProvider(keyID, secret, feed string) *AlpacaProvider {
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{APIKey: keyID, APISecret: secret}),
		feed:   parseFeed(feed),
	}
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}

// DailyBars returns raw (unadjusted) daily bars for [start, end], end inclusive.
func (a *AlpacaProvider) DailyBars(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceTable, error) {
	bars, err := a.bars(ctx, symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Raw,
		Start:      backtest.Day(start),
		End:        backtest.Day(end).AddDate(0, 0, 1),
		Feed:       a.feed,
	})
	if err != nil {
		return nil, err
	}
	return withinDays(bars, start, end), nil
}

// SessionOpen returns the open of the first one-minute bar of day.
func (a *AlpacaProvider) SessionOpen(ctx context.Context, symbol string, day time.Time) (float64, error) {
	et := getEasternTime()
	d := backtest.Day(day)
	from := time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, et)
	bars, err := a.bars(ctx, symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneMin,
		Adjustment: marketdata.Raw,
		Start:      from,
		End:        from.Add(30 * time.Minute),
		TotalLimit: 30,
		Feed:       a.feed,
	})
	if err != nil {
		return 0, err
	}
	return firstOpenOn(bars, d)
}

// bars runs the blocking SDK call so ctx can abandon it.
func (a *AlpacaProvider) bars(ctx context.Context, symbol string, req marketdata.GetBarsRequest) (backtest.PriceTable, error) {
	type result struct {
		bars []marketdata.Bar
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := a.client.GetBars(symbol, req)
		ch <- result{b, err}
	}()
	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		return nil, fmt.Errorf("alpaca bars: %w", r.err)
	}
	et := getEasternTime()
	out := make(backtest.PriceTable, 0, len(r.bars))
	for _, b := range r.bars {
		out = append(out, backtest.Bar{
			Date:  b.Timestamp.In(et),
			Open:  price(&b.Open),
			Close: price(&b.Close),
		})
	}
	return out, nil
}
