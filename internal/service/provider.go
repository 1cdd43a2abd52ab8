package service

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"switchBotTrade/internal/config"
	"switchBotTrade/internal/finance"
)

// NewProvider builds the configured market-data provider, wrapped in a circuit
// breaker when enabled.
func NewProvider(cfg config.DataConfig, log logrus.FieldLogger) (finance.Provider, error) {
	var p finance.Provider
	switch cfg.Provider {
	case "yahoo":
		p = finance.NewYahooProvider(finance.YahooOptions{
			Hosts:   cfg.YahooHosts,
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:  log,
		})
	case "alpaca":
		p = finance.NewAlpacaProvider(cfg.AlpacaKeyID, cfg.AlpacaSecret, cfg.AlpacaFeed)
	default:
		return nil, fmt.Errorf("unknown data provider %q", cfg.Provider)
	}
	if cfg.Breaker {
		p = finance.NewBreakerProvider(p, log)
	}
	return p, nil
}
