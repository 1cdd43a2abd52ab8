package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Annualization constants
const (
	tradingDaysPerYear  = 252.0
	calendarDaysPerYear = 365.25
)

// Metric is a value that may be unavailable. Err is nil when Value is meaningful.
type Metric struct {
	Value float64
	Err   error
}

// OK reports whether the metric could be computed
func (m Metric) OK() bool { return m.Err == nil }

// Metrics are the four performance figures of an equity curve
type Metrics struct {
	CAGR        Metric
	Volatility  Metric
	Sharpe      Metric
	MaxDrawdown Metric
}

// ComputeMetrics reduces a curve marked to close. Each metric is computed on its own;
// one failing leaves the others intact. Non-finite points are ignored.
func ComputeMetrics(c Curve, riskFree float64) Metrics {
	px := make(Curve, 0, len(c))
	for _, p := range c {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		px = append(px, p)
	}
	rets := dailyReturns(px)

	m := Metrics{
		CAGR:        cagr(px),
		Volatility:  volatility(rets, len(px)),
		MaxDrawdown: maxDrawdown(px),
	}
	m.Sharpe = sharpe(rets, m.Volatility, riskFree)
	return m
}

// dailyReturns are day-over-day percentage changes; steps from a zero value are skipped.
func dailyReturns(px Curve) []float64 {
	if len(px) < 2 {
		return nil
	}
	out := make([]float64, 0, len(px)-1)
	for i := 1; i < len(px); i++ {
		prev := px[i-1].Value
		if prev == 0 {
			continue
		}
		out = append(out, (px[i].Value-prev)/prev)
	}
	return out
}

func cagr(px Curve) Metric {
	if len(px) < 2 {
		return Metric{Err: &InsufficientHistoryError{Metric: "cagr", Have: len(px), Need: 2}}
	}
	first, last := px[0], px[len(px)-1]
	days := last.Date.Sub(first.Date).Hours() / 24
	if days <= 0 {
		return Metric{Err: fmt.Errorf("cagr: no elapsed time between first and last point: %w", ErrUndefined)}
	}
	if first.Value <= 0 {
		return Metric{Err: fmt.Errorf("cagr: starting value %.2f is not positive: %w", first.Value, ErrUndefined)}
	}
	v := math.Pow(last.Value/first.Value, calendarDaysPerYear/days) - 1
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{Err: fmt.Errorf("cagr: %w", ErrUndefined)}
	}
	return Metric{Value: v}
}

// volatility uses the sample standard deviation (N-1) scaled by sqrt(252).
func volatility(rets []float64, points int) Metric {
	if len(rets) < 2 {
		return Metric{Err: &InsufficientHistoryError{Metric: "volatility", Have: points, Need: 3}}
	}
	return Metric{Value: stat.StdDev(rets, nil) * math.Sqrt(tradingDaysPerYear)}
}

func sharpe(rets []float64, vol Metric, riskFree float64) Metric {
	if !vol.OK() {
		return Metric{Err: fmt.Errorf("sharpe: %w", vol.Err)}
	}
	if !(vol.Value > 0) {
		return Metric{Err: fmt.Errorf("sharpe: zero volatility: %w", ErrUndefined)}
	}
	return Metric{Value: (stat.Mean(rets, nil)*tradingDaysPerYear - riskFree) / vol.Value}
}

// maxDrawdown is the minimum of value/running_max - 1, so it lies in [-1, 0].
func maxDrawdown(px Curve) Metric {
	if len(px) == 0 {
		return Metric{Err: &InsufficientHistoryError{Metric: "max_drawdown", Have: 0, Need: 1}}
	}
	worst := 0.0
	peak := math.Inf(-1)
	for _, p := range px {
		if p.Value > peak {
			peak = p.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := p.Value/peak - 1; dd < worst {
			worst = dd
		}
	}
	return Metric{Value: worst}
}
