package backtest

import (
	"fmt"
	"time"
)

// SignalInput asks for a single-date decision against the asset currently held.
type SignalInput struct {
	Date          time.Time
	Asset1        Quote
	Asset2        Quote
	Label1        string
	Label2        string
	Holding       Asset
	HysteresisBps float64
}

// Signal is a point-in-time switch/hold decision with a readable action line
type Signal struct {
	Decision Decision
	Action   string
}

// EvaluateSignal applies the engine's edge and hysteresis rule once. There is no
// switch history in this mode, so cooldown never blocks.
func EvaluateSignal(in SignalInput) (Signal, error) {
	if in.Holding != Asset1 && in.Holding != Asset2 {
		return Signal{}, fmt.Errorf("holding must be asset1 or asset2, got %s", in.Holding)
	}
	edge, err := ComputeEdge(in.Date, in.Asset1, in.Asset2)
	if err != nil {
		return Signal{}, err
	}
	dec := Decide(in.Date, in.Holding, edge, in.HysteresisBps, true)

	label := func(a Asset) string {
		if a == Asset1 {
			return nonEmpty(in.Label1, "A")
		}
		return nonEmpty(in.Label2, "B")
	}
	var action string
	if dec.Switch {
		action = fmt.Sprintf("Switch to %s (sell %s at open; buy %s)", label(dec.Target), label(dec.Holding), label(dec.Target))
	} else {
		action = fmt.Sprintf("Hold %s (inside hysteresis or not superior)", label(dec.Holding))
	}
	return Signal{Decision: dec, Action: action}, nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
