// Package storage persists backtest runs and point-in-time signals in sqlite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Begin() (*sql.Tx, error)
	Close() error
}

type Store struct{ db DB }

func OpenSQLite(dsn string) (DB, error) {
	return sql.Open("sqlite3", dsn)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs(
		id TEXT PRIMARY KEY, created_at INTEGER NOT NULL,
		ticker1 TEXT NOT NULL, ticker2 TEXT NOT NULL, start_date TEXT NOT NULL, end_date TEXT NOT NULL,
		hysteresis_bps REAL, cooldown_days INTEGER, fee_bps REAL, slippage_bps REAL,
		shares1 INTEGER, shares2 INTEGER, cash REAL,
		switch_count INTEGER, turnover REAL, hit_rate REAL,
		final_active REAL, final_passive REAL,
		active_cagr REAL, active_vol REAL, active_sharpe REAL, active_mdd REAL,
		passive_cagr REAL, passive_vol REAL, passive_sharpe REAL, passive_mdd REAL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_results(
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE, date TEXT NOT NULL,
		equity_active REAL, equity_passive REAL, position_flag INTEGER, edge_bps REAL, switched INTEGER,
		PRIMARY KEY(run_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS switches(
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE, seq INTEGER NOT NULL, date TEXT NOT NULL,
		from_asset INTEGER, to_asset INTEGER, edge_bps REAL,
		sell_price REAL, sell_shares INTEGER, proceeds REAL, sell_fee REAL,
		buy_price REAL, buy_shares INTEGER, notional REAL, buy_fee REAL,
		cash_after_notional REAL, cash_after REAL, hit INTEGER,
		PRIMARY KEY(run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS signals(
		id INTEGER PRIMARY KEY AUTOINCREMENT, pair TEXT NOT NULL, date TEXT NOT NULL, created_at INTEGER NOT NULL,
		holding INTEGER, target INTEGER, edge_bps REAL, switched INTEGER, message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS signals_pair ON signals(pair, id)`,
}

func InitSchema(db DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func NewStore(db DB) *Store { return &Store{db: db} }

// OpenFile creates the parent directory of path, opens the sqlite file with foreign
// keys on and ensures the schema.
func OpenFile(path string) (DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("db dir: %w", err)
	}
	db, err := OpenSQLite("file:" + path + "?_fk=1")
	if err != nil {
		return nil, err
	}
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}
	return db, nil
}
