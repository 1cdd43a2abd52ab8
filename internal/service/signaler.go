package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"switchBotTrade/internal/backtest"
	"switchBotTrade/internal/config"
	"switchBotTrade/internal/finance"
	"switchBotTrade/internal/logging"
	"switchBotTrade/internal/notify"
	"switchBotTrade/internal/report"
	"switchBotTrade/internal/storage"
)

// ErrOutsideWindow is returned when the time guard rejects the current time.
var ErrOutsideWindow = errors.New("outside the signal window")

// SignalStore remembers evaluated signals per pair
type SignalStore interface {
	SaveSignal(rec storage.SignalRecord) error
	LastSignal(pair string) (storage.SignalRecord, error)
}

// SignalRequest is one point-in-time evaluation
type SignalRequest struct {
	TickerA    string
	TickerB    string
	LabelA     string
	LabelB     string
	Holding    backtest.Asset // zero means the target of the last stored signal
	DeltaBps   float64
	Retries    int
	RetryDelay time.Duration
	Location   *time.Location
	Guard      func(now time.Time) bool // nil disables the time guard
	Notify     bool
}

// SignalRequestFromConfig builds a request from the signal section.
func SignalRequestFromConfig(cfg *config.Config) SignalRequest {
	req := SignalRequest{
		TickerA:    cfg.Signal.TickerA,
		TickerB:    cfg.Signal.TickerB,
		LabelA:     cfg.Signal.LabelA,
		LabelB:     cfg.Signal.LabelB,
		DeltaBps:   cfg.Signal.DeltaBps,
		Retries:    cfg.Signal.OpenRetries,
		RetryDelay: cfg.OpenRetryDelay(),
		Location:   cfg.Location(),
		Notify:     true,
	}
	if a, ok := cfg.SignalHolding(); ok {
		req.Holding = a
	}
	if cfg.Signal.TimeGuard {
		req.Guard = cfg.InWindow
	}
	return req
}

// SignalOutcome is what an evaluation produced
type SignalOutcome struct {
	At      time.Time
	QuoteA  finance.SessionQuote
	QuoteB  finance.SessionQuote
	Signal  backtest.Signal
	Message string
}

type Signaler struct {
	provider finance.Provider
	store    SignalStore
	sender   notify.Sender
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewSignaler wires a provider with an optional store and sender; nil disables either.
func NewSignaler(p finance.Provider, store SignalStore, sender notify.Sender, log logrus.FieldLogger) *Signaler {
	if log == nil {
		log = logging.Discard()
	}
	return &Signaler{provider: p, store: store, sender: sender, log: log, now: time.Now}
}

// Evaluate reads today's gap for both tickers, decides switch or hold, stores the
// signal and posts the message. A delivery failure is returned with the outcome.
func (s *Signaler) Evaluate(ctx context.Context, req SignalRequest) (*SignalOutcome, error) {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)
	if req.Guard != nil && !req.Guard(now) {
		return nil, ErrOutsideWindow
	}
	ta, tb := strings.ToUpper(req.TickerA), strings.ToUpper(req.TickerB)
	labelA, labelB := nonEmpty(req.LabelA, "A"), nonEmpty(req.LabelB, "B")
	pair := storage.PairKey(ta, tb)
	log := s.log.WithField("pair", pair)

	holding := req.Holding
	if holding == 0 {
		holding = s.lastHolding(pair, log)
	}

	out := &SignalOutcome{At: now}
	today := backtest.Day(now)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := finance.LatestQuote(gctx, s.provider, ta, today, req.Retries, req.RetryDelay)
		out.QuoteA = q
		return err
	})
	g.Go(func() error {
		q, err := finance.LatestQuote(gctx, s.provider, tb, today, req.Retries, req.RetryDelay)
		out.QuoteB = q
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sig, err := backtest.EvaluateSignal(backtest.SignalInput{
		Date:          today,
		Asset1:        out.QuoteA.Quote(),
		Asset2:        out.QuoteB.Quote(),
		Label1:        labelA,
		Label2:        labelB,
		Holding:       holding,
		HysteresisBps: req.DeltaBps,
	})
	if err != nil {
		return nil, err
	}
	out.Signal = sig
	out.Message = report.SignalMessage(report.SignalView{
		At:            now,
		Ticker1:       ta,
		Ticker2:       tb,
		Label1:        labelA,
		Label2:        labelB,
		Quote1:        out.QuoteA.Quote(),
		Quote2:        out.QuoteB.Quote(),
		Signal:        sig,
		HysteresisBps: req.DeltaBps,
	})
	log.WithField("edge_bps", sig.Decision.Edge.Bps).Infof("signal: %s", sig.Action)

	if s.store != nil {
		rec := storage.SignalRecord{
			Pair:      pair,
			Date:      today,
			CreatedAt: now.UTC().Truncate(time.Second),
			Holding:   sig.Decision.Holding,
			Target:    sig.Decision.Target,
			EdgeBps:   sig.Decision.Edge.Bps,
			Switched:  sig.Decision.Switch,
			Message:   out.Message,
		}
		if err := s.store.SaveSignal(rec); err != nil {
			log.WithError(err).Error("signal: failed to persist")
		}
	}
	if req.Notify && s.sender != nil {
		if err := s.sender.Send(ctx, out.Message); err != nil {
			return out, fmt.Errorf("notify: %w", err)
		}
	}
	return out, nil
}

// lastHolding is the target of the last stored signal, or asset A when none exists.
func (s *Signaler) lastHolding(pair string, log logrus.FieldLogger) backtest.Asset {
	if s.store == nil {
		return backtest.Asset1
	}
	rec, err := s.store.LastSignal(pair)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).Warn("signal: could not read last signal, assuming A")
		}
		return backtest.Asset1
	}
	return rec.Target
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
