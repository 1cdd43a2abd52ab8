// Package report renders backtest results and signals as text and CSV.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"switchBotTrade/internal/backtest"
)

const dateLayout = "2006-01-02"

// Params are the run inputs echoed at the top of a summary
type Params struct {
	Start   time.Time
	End     time.Time
	Ticker1 string
	Ticker2 string
	Trade   backtest.TradeParams
}

// MetricsLine formats the four curve metrics on one line. If any of them could not be
// computed the whole line is replaced by a notice.
func MetricsLine(m backtest.Metrics) string {
	if !m.CAGR.OK() || !m.Volatility.OK() || !m.Sharpe.OK() || !m.MaxDrawdown.OK() {
		return "Insufficient data for metrics."
	}
	return fmt.Sprintf("CAGR: %6.2f%%  |  Vol (ann): %6.2f%%  |  Sharpe: %5.2f  |  Max DD: %6.2f%%",
		m.CAGR.Value*100, m.Volatility.Value*100, m.Sharpe.Value, m.MaxDrawdown.Value*100)
}

// HitRate formats the run's hit rate or n/a when no switch could be scored.
func HitRate(s backtest.RunStats) string {
	if !s.HitRate.OK() {
		return "Hit Rate: n/a"
	}
	return fmt.Sprintf("Hit Rate (close-after-switch): %.1f%%", s.HitRate.Value*100)
}

// Turnover formats the traded notional rounded to whole dollars with thousands separators.
func Turnover(v float64) string {
	return "Turnover Notional (approx): $" + humanize.Comma(int64(math.Round(v)))
}

// Summary renders the parameter, performance and trading sections of a run.
func Summary(p Params, res backtest.Result, active, passive backtest.Metrics) string {
	var b strings.Builder
	b.WriteString("=== Parameters ===\n")
	fmt.Fprintf(&b, "Dates: %s → %s\n", p.Start.Format(dateLayout), p.End.Format(dateLayout))
	fmt.Fprintf(&b, "Tickers: %s vs %s\n", p.Ticker1, p.Ticker2)
	fmt.Fprintf(&b, "Hysteresis: %g bps | Cooldown: %d days | Fees: %g bps | Slippage: %g bps\n",
		p.Trade.HysteresisBps, p.Trade.CooldownDays, p.Trade.FeeBps, p.Trade.SlippageBps)

	b.WriteString("\n=== Performance (Active) ===\n")
	b.WriteString(MetricsLine(active) + "\n")
	b.WriteString("=== Performance (Passive) ===\n")
	b.WriteString(MetricsLine(passive) + "\n")

	b.WriteString("\n=== Trading Stats ===\n")
	fmt.Fprintf(&b, "Switches: %d\n", res.Stats.SwitchCount)
	b.WriteString(HitRate(res.Stats) + "\n")
	b.WriteString(Turnover(res.Stats.TurnoverNotional) + "\n")
	return b.String()
}
