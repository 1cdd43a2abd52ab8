package report

import (
	"fmt"
	"strings"
	"time"

	"switchBotTrade/internal/backtest"
)

// SignalView carries what a point-in-time signal message shows
type SignalView struct {
	At            time.Time
	Ticker1       string
	Ticker2       string
	Label1        string
	Label2        string
	Quote1        backtest.Quote
	Quote2        backtest.Quote
	Signal        backtest.Signal
	HysteresisBps float64
}

// SignalMessage renders the signal in the chat format used for Discord and Telegram.
func SignalMessage(v SignalView) string {
	e := v.Signal.Decision.Edge
	holding := v.Label1
	if v.Signal.Decision.Holding == backtest.Asset2 {
		holding = v.Label2
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Binary Switch Signal** - %s\n", v.At.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "%s (%s) close/open: %.2f / %.2f  rA=%.2f%%\n", v.Label1, v.Ticker1, v.Quote1.PrevClose, v.Quote1.Open, e.R1*100)
	fmt.Fprintf(&b, "%s (%s) close/open: %.2f / %.2f  rB=%.2f%%\n", v.Label2, v.Ticker2, v.Quote2.PrevClose, v.Quote2.Open, e.R2*100)
	fmt.Fprintf(&b, "Edge (rB - rA): %.1f bps   |   Holding: %s\n", e.Bps, holding)
	fmt.Fprintf(&b, "Δ threshold: %.1f bps\n", v.HysteresisBps)
	fmt.Fprintf(&b, "**Action**: %s", v.Signal.Action)
	return b.String()
}
