package backtest

import (
	"math"
	"time"
)

// Bar is one raw daily observation for a single asset. Missing fields are NaN.
type Bar struct {
	Date  time.Time
	Open  float64
	Close float64
}

// PriceTable is the raw per-asset series as delivered by a data provider.
// It may be unsorted and may contain duplicate dates.
type PriceTable []Bar

// PriceRecord represents one asset's open and close for a date
type PriceRecord struct {
	Open  float64
	Close float64
}

func (p PriceRecord) usable() bool {
	return !math.IsNaN(p.Open) && !math.IsNaN(p.Close) &&
		!math.IsInf(p.Open, 0) && !math.IsInf(p.Close, 0)
}

// AlignedRow holds both assets' prices for one trading date
type AlignedRow struct {
	Date   time.Time
	Asset1 PriceRecord
	Asset2 PriceRecord
}

// AlignedTable is ordered by strictly increasing date with no gaps in either asset.
type AlignedTable []AlignedRow

// TradeParams is the immutable rule and cost configuration of a run
type TradeParams struct {
	HysteresisBps float64
	CooldownDays  int
	FeeBps        float64
	SlippageBps   float64
}

// Holdings is the starting position of a run
type Holdings struct {
	Shares1 int64
	Shares2 int64
	Cash    float64
}

// DailyResult is one output row, appended once per processed date
type DailyResult struct {
	Date          time.Time
	EquityActive  float64
	EquityPassive float64
	PositionFlag  int // +1 holding asset 1, -1 holding asset 2
	EdgeBps       float64
	Switched      bool
}

// SwitchEvent records both legs of an executed switch
type SwitchEvent struct {
	Date    time.Time
	From    Asset
	To      Asset
	EdgeBps float64

	SellPrice  float64
	SellShares int64
	Proceeds   float64
	SellFee    float64

	BuyPrice  float64
	BuyShares int64
	Notional  float64
	BuyFee    float64

	CashAfterNotional float64 // never negative: shares are floored
	CashAfter         float64 // after the buy fee
	Hit               bool
}

// RunStats summarizes trading activity over a run
type RunStats struct {
	SwitchCount      int
	TurnoverNotional float64
	HitRate          Metric
}

// Result is everything a run produces
type Result struct {
	Rows     []DailyResult
	Switches []SwitchEvent
	Stats    RunStats
}

// EquityPoint is one point of an equity curve
type EquityPoint struct {
	Date  time.Time
	Value float64
}

// Curve is an equity curve ordered by date
type Curve []EquityPoint

// ActiveCurve extracts the switching portfolio's equity curve
func (r Result) ActiveCurve() Curve {
	out := make(Curve, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = EquityPoint{Date: row.Date, Value: row.EquityActive}
	}
	return out
}

// PassiveCurve extracts the buy-and-hold equity curve
func (r Result) PassiveCurve() Curve {
	out := make(Curve, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = EquityPoint{Date: row.Date, Value: row.EquityPassive}
	}
	return out
}
