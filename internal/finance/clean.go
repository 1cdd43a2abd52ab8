package finance

import (
	"math"
	"time"

	"switchBotTrade/internal/backtest"
)

// price converts a nullable quote value. Null, negative and non-finite values become NaN.
func price(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	v := *p
	if v < 0 || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// chartBars turns a chart result into bars dated by exchange calendar day. Arrays of
// different length are truncated to the shortest, keeping them aligned.
func chartBars(r yahooChartResult) backtest.PriceTable {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	n := len(r.Timestamp)
	if len(q.Open) < n {
		n = len(q.Open)
	}
	if len(q.Close) < n {
		n = len(q.Close)
	}
	loc := exchangeLocation(r.Meta.ExchangeTimezoneName, r.Meta.GmtOffset)
	out := make(backtest.PriceTable, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, backtest.Bar{
			Date:  time.Unix(r.Timestamp[i], 0).In(loc),
			Open:  price(q.Open[i]),
			Close: price(q.Close[i]),
		})
	}
	return out
}

// withinDays keeps bars whose calendar day lies in [from, to], both inclusive.
// Bar dates are normalized to the day.
func withinDays(bars backtest.PriceTable, from, to time.Time) backtest.PriceTable {
	lo, hi := backtest.Day(from), backtest.Day(to)
	out := bars[:0:0]
	for _, b := range bars {
		d := backtest.Day(b.Date)
		if d.Before(lo) || d.After(hi) {
			continue
		}
		b.Date = d
		out = append(out, b)
	}
	return out
}
