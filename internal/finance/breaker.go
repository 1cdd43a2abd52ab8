package finance

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"switchBotTrade/internal/backtest"
)

// BreakerProvider wraps a Provider with circuit breaker functionality
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker
}

// BreakerSettings configures circuit breaker behavior
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewBreakerProvider wraps next with default settings
func NewBreakerProvider(next Provider, log logrus.FieldLogger) *BreakerProvider {
	return NewBreakerProviderWithSettings(next, BreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}, log)
}

func NewBreakerProviderWithSettings(next Provider, settings BreakerSettings, log logrus.FieldLogger) *BreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "market-data",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		// a session that has not opened yet or a cancelled caller is not a provider fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotAvailable) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if log != nil {
				log.WithField("breaker", name).Warnf("finance: circuit breaker state changed from %s to %s", from, to)
			}
		},
	}
	return &BreakerProvider{next: next, breaker: gobreaker.NewCircuitBreaker(gbSettings)}
}

// State exposes the breaker state for health reporting
func (b *BreakerProvider) State() gobreaker.State { return b.breaker.State() }

func execBreaker[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

func (b *BreakerProvider) DailyBars(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceTable, error) {
	return execBreaker(b.breaker, func() (backtest.PriceTable, error) { return b.next.DailyBars(ctx, symbol, start, end) })
}

func (b *BreakerProvider) SessionOpen(ctx context.Context, symbol string, day time.Time) (float64, error) {
	return execBreaker(b.breaker, func() (float64, error) { return b.next.SessionOpen(ctx, symbol, day) })
}
