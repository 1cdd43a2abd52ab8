package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchBotTrade/internal/backtest"
	"switchBotTrade/internal/storage"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type fakeProvider struct {
	mu    sync.Mutex
	daily map[string]backtest.PriceTable
	opens map[string]float64
	errs  map[string]error
	calls int
}

func (f *fakeProvider) DailyBars(_ context.Context, symbol string, start, end time.Time) (backtest.PriceTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	var out backtest.PriceTable
	for _, b := range f.daily[symbol] {
		if !b.Date.Before(start) && !b.Date.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeProvider) SessionOpen(_ context.Context, symbol string, _ time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.opens[symbol], nil
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := storage.OpenSQLite("file:" + filepath.Join(t.TempDir(), "svc.db") + "?_fk=1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.InitSchema(db))
	return storage.NewStore(db)
}

func threeDayProvider() *fakeProvider {
	return &fakeProvider{daily: map[string]backtest.PriceTable{
		"AAA": {
			{Date: day(2024, 1, 2), Open: 100, Close: 100},
			{Date: day(2024, 1, 3), Open: 100, Close: 100},
			{Date: day(2024, 1, 4), Open: 100, Close: 100},
		},
		"BBB": {
			{Date: day(2024, 1, 2), Open: 50, Close: 50},
			{Date: day(2024, 1, 3), Open: 55, Close: 56},
			{Date: day(2024, 1, 4), Open: 56, Close: 57},
		},
	}}
}

func TestBacktesterRun(t *testing.T) {
	store := newStore(t)
	b := NewBacktester(threeDayProvider(), store, nil)
	b.newID = func() string { return "run-1" }
	b.now = func() time.Time { return time.Date(2024, 2, 1, 10, 0, 0, 500, time.UTC) }

	rep, err := b.Run(context.Background(), Request{
		Ticker1:  "aaa",
		Ticker2:  "bbb",
		Start:    day(2024, 1, 1),
		End:      day(2024, 1, 31),
		Holdings: backtest.Holdings{Shares1: 100},
		Trade:    backtest.TradeParams{HysteresisBps: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", rep.Run.ID)
	assert.Equal(t, "AAA", rep.Run.Ticker1)
	assert.Len(t, rep.Table, 3)
	require.Len(t, rep.Run.Result.Switches, 1)
	assert.Equal(t, int64(181), rep.Run.Result.Switches[0].BuyShares)
	assert.Contains(t, rep.Summary, "Tickers: AAA vs BBB")
	assert.Contains(t, rep.Summary, "Switches: 1")
	assert.True(t, rep.Run.Active.CAGR.OK())

	stored, err := b.Load("run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.Run.Result.Rows, stored.Result.Rows)
	assert.True(t, stored.CreatedAt.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)))

	recent, err := b.Recent(5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "run-1", recent[0].ID)

	chart := rep.Chart()
	assert.Equal(t, "AAA", chart.Label1)
	assert.Len(t, chart.Rows, 3)
}

func TestBacktesterRun_Errors(t *testing.T) {
	p := threeDayProvider()
	p.errs = map[string]error{"BBB": errors.New("boom")}
	b := NewBacktester(p, nil, nil)

	_, err := b.Run(context.Background(), Request{Ticker1: "AAA", Ticker2: "BBB", Start: day(2024, 1, 1), End: day(2024, 1, 31), Holdings: backtest.Holdings{Shares1: 1}})
	assert.EqualError(t, err, "fetch prices: BBB: boom")

	_, err = b.Run(context.Background(), Request{Ticker1: "AAA", Ticker2: "aaa"})
	assert.ErrorContains(t, err, "tickers must differ")

	_, err = b.Run(context.Background(), Request{Ticker1: "AAA", Ticker2: "CCC", Start: day(2024, 1, 1), End: day(2024, 1, 31), Holdings: backtest.Holdings{Shares1: 1}})
	var nd *backtest.NoDataError
	require.True(t, errors.As(err, &nd))
	assert.Equal(t, "CCC", nd.Table)

	_, err = b.Load("x")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

type recordSender struct {
	msgs []string
	err  error
}

func (r *recordSender) Send(_ context.Context, text string) error {
	r.msgs = append(r.msgs, text)
	return r.err
}

var est = time.FixedZone("EST", -5*3600)

func signalProvider() *fakeProvider {
	return &fakeProvider{
		daily: map[string]backtest.PriceTable{
			"VFV.TO":  {{Date: day(2024, 1, 5), Open: 99, Close: 100}},
			"VEQT.TO": {{Date: day(2024, 1, 5), Open: 49, Close: 50}},
		},
		opens: map[string]float64{"VFV.TO": 100, "VEQT.TO": 50.5},
	}
}

func signalRequest() SignalRequest {
	return SignalRequest{
		TickerA:  "VFV.TO",
		TickerB:  "VEQT.TO",
		LabelA:   "A",
		LabelB:   "B",
		Holding:  backtest.Asset1,
		DeltaBps: 7,
		Retries:  1,
		Location: est,
		Notify:   true,
	}
}

func TestSignalerEvaluate(t *testing.T) {
	store := newStore(t)
	sender := &recordSender{}
	s := NewSignaler(signalProvider(), store, sender, nil)
	s.now = func() time.Time { return time.Date(2024, 1, 8, 14, 35, 0, 0, time.UTC) }

	out, err := s.Evaluate(context.Background(), signalRequest())
	require.NoError(t, err)
	assert.True(t, out.Signal.Decision.Switch)
	assert.Equal(t, "Switch to B (sell A at open; buy B)", out.Signal.Action)
	assert.Equal(t, day(2024, 1, 5), out.QuoteA.PrevCloseDate)
	assert.Contains(t, out.Message, "2024-01-08 09:35 EST")
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, out.Message, sender.msgs[0])

	rec, err := store.LastSignal("VFV.TO/VEQT.TO")
	require.NoError(t, err)
	assert.Equal(t, backtest.Asset2, rec.Target)
	assert.True(t, rec.Switched)

	// auto holding picks up the switch recorded above
	req := signalRequest()
	req.Holding = 0
	out, err = s.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, backtest.Asset2, out.Signal.Decision.Holding)
	assert.False(t, out.Signal.Decision.Switch)
	assert.Equal(t, "Hold B (inside hysteresis or not superior)", out.Signal.Action)
}

func TestSignalerEvaluate_AutoWithoutHistory(t *testing.T) {
	s := NewSignaler(signalProvider(), newStore(t), nil, nil)
	s.now = func() time.Time { return time.Date(2024, 1, 8, 14, 35, 0, 0, time.UTC) }
	req := signalRequest()
	req.Holding = 0
	out, err := s.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, backtest.Asset1, out.Signal.Decision.Holding)
}

func TestSignalerEvaluate_Guard(t *testing.T) {
	p := signalProvider()
	s := NewSignaler(p, nil, nil, nil)
	req := signalRequest()
	req.Guard = func(time.Time) bool { return false }
	_, err := s.Evaluate(context.Background(), req)
	assert.ErrorIs(t, err, ErrOutsideWindow)
	assert.Equal(t, 0, p.calls)
}

func TestSignalerEvaluate_NotifyFailure(t *testing.T) {
	boom := errors.New("webhook down")
	s := NewSignaler(signalProvider(), nil, &recordSender{err: boom}, nil)
	s.now = func() time.Time { return time.Date(2024, 1, 8, 14, 35, 0, 0, time.UTC) }
	out, err := s.Evaluate(context.Background(), signalRequest())
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, out, "the evaluated signal is still returned")
	assert.True(t, out.Signal.Decision.Switch)
}
