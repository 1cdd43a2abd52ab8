package finance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"switchBotTrade/internal/backtest"
	"switchBotTrade/internal/logging"
)

// YahooProvider reads daily and one-minute bars from the public v8 chart API.
type YahooProvider struct {
	hosts    []string
	scheme   string
	client   *http.Client
	backoffs []time.Duration
	log      logrus.FieldLogger
}

// YahooOptions configures a YahooProvider. Zero fields take defaults; a non-nil empty
// Backoffs makes a single pass over the hosts.
type YahooOptions struct {
	Hosts    []string
	Scheme   string
	Timeout  time.Duration
	Backoffs []time.Duration
	Client   *http.Client
	Logger   logrus.FieldLogger
}

func NewYahooProvider(opts YahooOptions) *YahooProvider {
	y := &YahooProvider{
		hosts:    opts.Hosts,
		scheme:   opts.Scheme,
		client:   opts.Client,
		backoffs: opts.Backoffs,
		log:      opts.Logger,
	}
	if len(y.hosts) == 0 {
		y.hosts = []string{"query1.finance.yahoo.com", "query2.finance.yahoo.com"}
	}
	if y.scheme == "" {
		y.scheme = "https"
	}
	if y.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		y.client = &http.Client{Timeout: timeout}
	}
	if y.backoffs == nil {
		y.backoffs = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}
	}
	if y.log == nil {
		y.log = logging.Discard()
	}
	return y
}

// DailyBars returns unadjusted daily open/close for [start, end], end inclusive.
func (y *YahooProvider) DailyBars(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceTable, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(backtest.Day(start).Unix(), 10))
	q.Set("period2", strconv.FormatInt(backtest.Day(end).AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	res, err := y.getChart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	bars := withinDays(chartBars(*res), start, end)
	y.log.WithField("symbol", symbol).Debugf("yahoo: %d daily bars", len(bars))
	return bars, nil
}

// SessionOpen returns the open of the first one-minute bar of day, the exchange
// calendar date as returned by backtest.Day.
func (y *YahooProvider) SessionOpen(ctx context.Context, symbol string, day time.Time) (float64, error) {
	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1m")
	res, err := y.getChart(ctx, symbol, q)
	if err != nil {
		return 0, err
	}
	return firstOpenOn(chartBars(*res), day)
}

func firstOpenOn(bars backtest.PriceTable, day time.Time) (float64, error) {
	want := backtest.Day(day)
	for _, b := range bars {
		if !backtest.Day(b.Date).Equal(want) {
			continue
		}
		if math.IsNaN(b.Open) || b.Open <= 0 {
			continue
		}
		return b.Open, nil
	}
	return 0, fmt.Errorf("%w: no minute bar on %s", ErrNotAvailable, want.Format("2006-01-02"))
}
