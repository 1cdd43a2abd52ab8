package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchBotTrade/internal/backtest"
	"switchBotTrade/internal/config"
	"switchBotTrade/internal/finance"
)

func TestNewProvider(t *testing.T) {
	cfg := config.Default().Data

	p, err := NewProvider(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &finance.BreakerProvider{}, p)

	cfg.Breaker = false
	p, err = NewProvider(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &finance.YahooProvider{}, p)

	cfg.Provider, cfg.AlpacaKeyID, cfg.AlpacaSecret = "alpaca", "key", "secret"
	p, err = NewProvider(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &finance.AlpacaProvider{}, p)

	cfg.Provider = "bloomberg"
	_, err = NewProvider(cfg, nil)
	assert.Error(t, err)
}

func TestRequestsFromConfig(t *testing.T) {
	cfg := config.Default()
	req, err := RequestFromConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "VEQT.TO", req.Ticker1)
	assert.Equal(t, day(2024, 1, 1), req.Start)
	assert.Equal(t, int64(500), req.Holdings.Shares1)
	assert.Equal(t, 7.0, req.Trade.HysteresisBps)

	sig := SignalRequestFromConfig(&cfg)
	assert.Equal(t, backtest.Asset1, sig.Holding)
	assert.Nil(t, sig.Guard)
	assert.True(t, sig.Notify)

	cfg.Signal.Holding = "auto"
	cfg.Signal.TimeGuard = true
	sig = SignalRequestFromConfig(&cfg)
	assert.Equal(t, backtest.Asset(0), sig.Holding)
	require.NotNil(t, sig.Guard)
}
