package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"switchBotTrade/internal/backtest"
)

// SignalRecord is one evaluated point-in-time signal
type SignalRecord struct {
	Pair      string
	Date      time.Time
	CreatedAt time.Time
	Holding   backtest.Asset
	Target    backtest.Asset
	EdgeBps   float64
	Switched  bool
	Message   string
}

// PairKey identifies a ticker pair in the signals table. Order matters: asset 1 first.
func PairKey(ticker1, ticker2 string) string {
	return strings.ToUpper(ticker1) + "/" + strings.ToUpper(ticker2)
}

func (s *Store) SaveSignal(rec SignalRecord) error {
	_, err := s.db.Exec(`INSERT INTO signals(pair,date,created_at,holding,target,edge_bps,switched,message) VALUES(?,?,?,?,?,?,?,?)`,
		rec.Pair, rec.Date.Format(dateLayout), rec.CreatedAt.Unix(), int(rec.Holding), int(rec.Target), rec.EdgeBps, boolInt(rec.Switched), rec.Message)
	return err
}

// LastSignal returns the newest signal stored for pair, or ErrNotFound.
func (s *Store) LastSignal(pair string) (SignalRecord, error) {
	var (
		rec             SignalRecord
		date            string
		created         int64
		holding, target int
		switched        int
	)
	err := s.db.QueryRow(`SELECT pair,date,created_at,holding,target,edge_bps,switched,message
		FROM signals WHERE pair=? ORDER BY id DESC LIMIT 1`, pair).Scan(
		&rec.Pair, &date, &created, &holding, &target, &rec.EdgeBps, &switched, &rec.Message)
	if errors.Is(err, sql.ErrNoRows) {
		return SignalRecord{}, fmt.Errorf("signal %s: %w", pair, ErrNotFound)
	}
	if err != nil {
		return SignalRecord{}, err
	}
	if rec.Date, err = time.Parse(dateLayout, date); err != nil {
		return SignalRecord{}, err
	}
	rec.CreatedAt = time.Unix(created, 0).UTC()
	rec.Holding, rec.Target, rec.Switched = backtest.Asset(holding), backtest.Asset(target), switched != 0
	return rec, nil
}
