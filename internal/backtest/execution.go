package backtest

import "math"

// Side is the direction of an execution leg
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

const bpsPerUnit = 10000.0

// FillPrice applies slippage against the trader: buys pay up, sells receive less.
func FillPrice(open, slippageBps float64, side Side) float64 {
	s := slippageBps / bpsPerUnit
	if side == Buy {
		return open * (1 + s)
	}
	return open * (1 - s)
}

// Fee is the commission charged on one leg's notional.
func Fee(notional, feeBps float64) float64 {
	return math.Abs(notional) * (feeBps / bpsPerUnit)
}

// affordableShares is the floored share count cash buys at price. The buy fee is
// charged afterwards and may leave cash slightly negative.
func affordableShares(cash, price float64) int64 {
	if cash <= 0 || price <= 0 {
		return 0
	}
	return int64(math.Floor(cash / price))
}
