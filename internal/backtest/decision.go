package backtest

import (
	"fmt"
	"math"
	"time"
)

// Asset identifies one side of the pair. The zero value means none.
type Asset int

const (
	Asset1 Asset = iota + 1
	Asset2
)

func (a Asset) String() string {
	switch a {
	case Asset1:
		return "asset1"
	case Asset2:
		return "asset2"
	default:
		return "none"
	}
}

// Other returns the opposite side of the pair
func (a Asset) Other() Asset {
	if a == Asset1 {
		return Asset2
	}
	return Asset1
}

// Flag is the position flag reported in result rows
func (a Asset) Flag() int {
	if a == Asset1 {
		return 1
	}
	return -1
}

// Quote is the overnight gap input for one asset: yesterday's close and today's open.
type Quote struct {
	PrevClose float64
	Open      float64
}

// Edge holds both overnight returns and their difference in basis points.
// A positive edge favors asset 2.
type Edge struct {
	R1  float64
	R2  float64
	Bps float64
}

// ComputeEdge fails with a DataIntegrityError when a previous close cannot be used as
// a denominator.
func ComputeEdge(date time.Time, q1, q2 Quote) (Edge, error) {
	r1, err := overnightReturn(date, Asset1, q1)
	if err != nil {
		return Edge{}, err
	}
	r2, err := overnightReturn(date, Asset2, q2)
	if err != nil {
		return Edge{}, err
	}
	return Edge{R1: r1, R2: r2, Bps: (r2 - r1) * bpsPerUnit}, nil
}

func overnightReturn(date time.Time, a Asset, q Quote) (float64, error) {
	switch {
	case math.IsNaN(q.PrevClose) || math.IsInf(q.PrevClose, 0):
		return 0, &DataIntegrityError{Date: date, Asset: a, Reason: "previous close is missing"}
	case q.PrevClose <= 0:
		return 0, &DataIntegrityError{Date: date, Asset: a, Reason: fmt.Sprintf("previous close %.6g is not positive", q.PrevClose)}
	case math.IsNaN(q.Open) || math.IsInf(q.Open, 0):
		return 0, &DataIntegrityError{Date: date, Asset: a, Reason: "open is missing"}
	}
	return (q.Open - q.PrevClose) / q.PrevClose, nil
}

// Decision is the outcome of the per-date switching rule
type Decision struct {
	Date       time.Time
	Holding    Asset
	Target     Asset
	Edge       Edge
	CooldownOK bool
	Switch     bool
	Reason     string
}

// CooldownElapsed reports whether a switch on date is allowed given the last switch.
// A zero lastSwitch means no switch has happened yet.
func CooldownElapsed(date, lastSwitch time.Time, cooldownDays int) bool {
	if lastSwitch.IsZero() {
		return true
	}
	return DaysBetween(lastSwitch, date) >= cooldownDays
}

// Decide applies hysteresis and cooldown to an already computed edge.
// Only the held asset's disadvantage is compared against the threshold, strictly.
func Decide(date time.Time, holding Asset, edge Edge, hysteresisBps float64, cooldownOK bool) Decision {
	d := Decision{
		Date:       date,
		Holding:    holding,
		Target:     holding,
		Edge:       edge,
		CooldownOK: cooldownOK,
	}
	var beaten bool
	if holding == Asset1 {
		beaten = edge.Bps > hysteresisBps
	} else {
		beaten = edge.Bps < -hysteresisBps
	}
	advantage := edge.Bps
	if holding == Asset2 {
		advantage = -edge.Bps
	}
	switch {
	case beaten && cooldownOK:
		d.Switch = true
		d.Target = holding.Other()
		d.Reason = fmt.Sprintf("%s beats %s by %.1f bps > %.1f bps threshold", d.Target, holding, advantage, hysteresisBps)
	case beaten:
		d.Reason = fmt.Sprintf("%s beats %s by %.1f bps but cooldown is active", holding.Other(), holding, advantage)
	default:
		d.Reason = fmt.Sprintf("inside hysteresis or not superior (%.1f bps vs %.1f bps threshold)", advantage, hysteresisBps)
	}
	return d
}

// Evaluate runs the full per-date rule against the previous row. On the first date
// (prev == nil) the edge is zero and no switch is possible.
func Evaluate(prev *AlignedRow, today AlignedRow, holding Asset, lastSwitch time.Time, p TradeParams) (Decision, error) {
	if prev == nil {
		return Decision{
			Date:       today.Date,
			Holding:    holding,
			Target:     holding,
			CooldownOK: CooldownElapsed(today.Date, lastSwitch, p.CooldownDays),
			Reason:     "first date: no previous close",
		}, nil
	}
	edge, err := ComputeEdge(today.Date,
		Quote{PrevClose: prev.Asset1.Close, Open: today.Asset1.Open},
		Quote{PrevClose: prev.Asset2.Close, Open: today.Asset2.Open},
	)
	if err != nil {
		return Decision{}, err
	}
	ok := CooldownElapsed(today.Date, lastSwitch, p.CooldownDays)
	return Decide(today.Date, holding, edge, p.HysteresisBps, ok), nil
}
