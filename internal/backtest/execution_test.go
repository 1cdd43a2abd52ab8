package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillPrice(t *testing.T) {
	tests := []struct {
		name     string
		open     float64
		slippage float64
		side     Side
		want     float64
	}{
		{"buy no slippage", 100, 0, Buy, 100},
		{"sell no slippage", 100, 0, Sell, 100},
		{"buy pays up", 100, 50, Buy, 100.5},
		{"sell receives less", 100, 50, Sell, 99.5},
		{"buy 1bp", 250, 1, Buy, 250.025},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FillPrice(tt.open, tt.slippage, tt.side), 1e-9)
		})
	}
}

func TestFee(t *testing.T) {
	assert.InDelta(t, 5.0, Fee(10000, 5), 1e-12)
	assert.InDelta(t, 5.0, Fee(-10000, 5), 1e-12, "fee is charged on absolute notional")
	assert.Equal(t, 0.0, Fee(10000, 0))
}

func TestAffordableShares(t *testing.T) {
	tests := []struct {
		name  string
		cash  float64
		price float64
		want  int64
	}{
		{"floors", 10000, 55, 181},
		{"exact fit", 10000, 100, 100},
		{"slipped price", 10000, 100.5, 99},
		{"no cash", 0, 100, 0},
		{"negative cash", -5, 100, 0},
		{"bad price", 10000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, affordableShares(tt.cash, tt.price))
		})
	}
}
