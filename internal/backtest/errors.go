package backtest

import (
	"errors"
	"fmt"
	"time"
)

// ErrUndefined marks a metric whose formula has no meaningful value for the curve,
// e.g. a Sharpe ratio over zero volatility.
var ErrUndefined = errors.New("metric undefined")

// NoDataError is returned when an input price table is empty or entirely unusable.
type NoDataError struct {
	Table  string
	Reason string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data: %s: %s", e.Table, e.Reason)
}

// DataIntegrityError aborts a run when a precondition of the engine fails at a date.
type DataIntegrityError struct {
	Date   time.Time
	Asset  Asset
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Asset == 0 {
		return fmt.Sprintf("data integrity: %s: %s", e.Date.Format(dateLayout), e.Reason)
	}
	return fmt.Sprintf("data integrity: %s: %s: %s", e.Date.Format(dateLayout), e.Asset, e.Reason)
}

// InsufficientHistoryError is reported per metric when the curve is too short.
type InsufficientHistoryError struct {
	Metric string
	Have   int
	Need   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d points, need %d", e.Metric, e.Have, e.Need)
}

const dateLayout = "2006-01-02"
