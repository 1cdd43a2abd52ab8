// Package service runs backtests and point-in-time signals end to end: market data,
// engine, metrics, persistence and delivery.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"switchBotTrade/internal/backtest"
	"switchBotTrade/internal/config"
	"switchBotTrade/internal/finance"
	"switchBotTrade/internal/logging"
	"switchBotTrade/internal/report"
	"switchBotTrade/internal/storage"
)

// RunStore persists backtest runs
type RunStore interface {
	SaveRun(r storage.Run) error
	LoadRun(id string) (storage.Run, error)
	ListRuns(limit int) ([]storage.RunSummary, error)
}

// Request is one backtest invocation
type Request struct {
	Ticker1  string
	Ticker2  string
	Start    time.Time
	End      time.Time
	Holdings backtest.Holdings
	Trade    backtest.TradeParams
	RiskFree float64
}

// RequestFromConfig builds a request from the backtest and trade sections.
func RequestFromConfig(cfg *config.Config) (Request, error) {
	start, end, err := cfg.Range()
	if err != nil {
		return Request{}, err
	}
	return Request{
		Ticker1:  cfg.Backtest.Ticker1,
		Ticker2:  cfg.Backtest.Ticker2,
		Start:    start,
		End:      end,
		Holdings: cfg.Holdings(),
		Trade:    cfg.TradeParams(),
		RiskFree: cfg.Trade.RiskFree,
	}, nil
}

// Report is the outcome of a backtest
type Report struct {
	Run     storage.Run
	Table   backtest.AlignedTable
	Summary string
}

// Params echoes the run inputs for text rendering
func (r *Report) Params() report.Params {
	return report.Params{Start: r.Run.Start, End: r.Run.End, Ticker1: r.Run.Ticker1, Ticker2: r.Run.Ticker2, Trade: r.Run.Trade}
}

// Chart describes the equity chart of the run
func (r *Report) Chart() finance.EquityChart {
	return ChartOf(r.Run)
}

// ChartOf describes the equity chart of a stored run.
func ChartOf(run storage.Run) finance.EquityChart {
	return finance.EquityChart{
		Title:    fmt.Sprintf("%s vs %s: Active vs Passive", run.Ticker1, run.Ticker2),
		Label1:   run.Ticker1,
		Label2:   run.Ticker2,
		Rows:     run.Result.Rows,
		Subtitle: "Active " + report.MetricsLine(run.Active),
	}
}

type Backtester struct {
	provider finance.Provider
	store    RunStore
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
}

// NewBacktester wires a provider and an optional store. A nil store skips persistence.
func NewBacktester(p finance.Provider, store RunStore, log logrus.FieldLogger) *Backtester {
	if log == nil {
		log = logging.Discard()
	}
	return &Backtester{
		provider: p,
		store:    store,
		log:      log,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Run fetches both series, aligns them, simulates, measures and persists.
func (b *Backtester) Run(ctx context.Context, req Request) (*Report, error) {
	t1, t2 := strings.ToUpper(req.Ticker1), strings.ToUpper(req.Ticker2)
	if t1 == "" || t2 == "" {
		return nil, fmt.Errorf("both tickers are required")
	}
	if t1 == t2 {
		return nil, fmt.Errorf("tickers must differ, got %s twice", t1)
	}
	log := b.log.WithFields(logrus.Fields{"ticker1": t1, "ticker2": t2})

	pair, err := finance.FetchPair(ctx, b.provider, t1, t2, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	table, err := backtest.AlignTwo(pair.Asset1, pair.Asset2)
	if err != nil {
		var nd *backtest.NoDataError
		if errors.As(err, &nd) {
			switch nd.Table {
			case "asset1":
				nd.Table = t1
			case "asset2":
				nd.Table = t2
			}
		}
		return nil, err
	}
	log.Debugf("backtest: %d aligned dates", len(table))

	res, err := backtest.Run(table, req.Holdings, req.Trade)
	if err != nil {
		return nil, err
	}
	run := storage.Run{
		ID:        b.newID(),
		CreatedAt: b.now().UTC().Truncate(time.Second),
		Ticker1:   t1,
		Ticker2:   t2,
		Start:     backtest.Day(req.Start),
		End:       backtest.Day(req.End),
		Trade:     req.Trade,
		Holdings:  req.Holdings,
		Result:    res,
		Active:    backtest.ComputeMetrics(res.ActiveCurve(), req.RiskFree),
		Passive:   backtest.ComputeMetrics(res.PassiveCurve(), req.RiskFree),
	}
	if b.store != nil {
		if err := b.store.SaveRun(run); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
	}
	log.WithField("run_id", run.ID).Infof("backtest: %d rows, %d switches", len(res.Rows), res.Stats.SwitchCount)

	rep := &Report{Run: run, Table: table}
	rep.Summary = report.Summary(rep.Params(), res, run.Active, run.Passive)
	return rep, nil
}

// Load returns a persisted run.
func (b *Backtester) Load(id string) (storage.Run, error) {
	if b.store == nil {
		return storage.Run{}, fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}
	return b.store.LoadRun(id)
}

// Recent lists the latest persisted runs.
func (b *Backtester) Recent(limit int) ([]storage.RunSummary, error) {
	if b.store == nil {
		return nil, nil
	}
	return b.store.ListRuns(limit)
}
