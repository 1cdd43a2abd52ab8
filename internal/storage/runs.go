package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"switchBotTrade/internal/backtest"
)

const dateLayout = "2006-01-02"

// Run is a persisted backtest: its inputs, every output row and both curves' metrics.
type Run struct {
	ID        string
	CreatedAt time.Time
	Ticker1   string
	Ticker2   string
	Start     time.Time
	End       time.Time
	Trade     backtest.TradeParams
	Holdings  backtest.Holdings
	Result    backtest.Result
	Active    backtest.Metrics
	Passive   backtest.Metrics
}

// RunSummary is one line of the run listing
type RunSummary struct {
	ID           string
	CreatedAt    time.Time
	Ticker1      string
	Ticker2      string
	Start        time.Time
	End          time.Time
	SwitchCount  int
	FinalActive  float64
	FinalPassive float64
}

func nullable(m backtest.Metric) sql.NullFloat64 {
	if !m.OK() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: m.Value, Valid: true}
}

func metricFrom(name string, v sql.NullFloat64) backtest.Metric {
	if !v.Valid {
		return backtest.Metric{Err: fmt.Errorf("%s: %w", name, backtest.ErrUndefined)}
	}
	return backtest.Metric{Value: v.Float64}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func finalEquity(rows []backtest.DailyResult) (active, passive float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	last := rows[len(rows)-1]
	return last.EquityActive, last.EquityPassive
}

// SaveRun writes the run, its daily rows and its switches in one transaction.
func (s *Store) SaveRun(r Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	fa, fp := finalEquity(r.Result.Rows)
	_, err = tx.Exec(`INSERT INTO runs(id,created_at,ticker1,ticker2,start_date,end_date,
		hysteresis_bps,cooldown_days,fee_bps,slippage_bps,shares1,shares2,cash,
		switch_count,turnover,hit_rate,final_active,final_passive,
		active_cagr,active_vol,active_sharpe,active_mdd,passive_cagr,passive_vol,passive_sharpe,passive_mdd)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.CreatedAt.Unix(), r.Ticker1, r.Ticker2, r.Start.Format(dateLayout), r.End.Format(dateLayout),
		r.Trade.HysteresisBps, r.Trade.CooldownDays, r.Trade.FeeBps, r.Trade.SlippageBps,
		r.Holdings.Shares1, r.Holdings.Shares2, r.Holdings.Cash,
		r.Result.Stats.SwitchCount, r.Result.Stats.TurnoverNotional, nullable(r.Result.Stats.HitRate), fa, fp,
		nullable(r.Active.CAGR), nullable(r.Active.Volatility), nullable(r.Active.Sharpe), nullable(r.Active.MaxDrawdown),
		nullable(r.Passive.CAGR), nullable(r.Passive.Volatility), nullable(r.Passive.Sharpe), nullable(r.Passive.MaxDrawdown),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rowStmt, err := tx.Prepare(`INSERT INTO daily_results(run_id,date,equity_active,equity_passive,position_flag,edge_bps,switched)
		VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer rowStmt.Close()
	for _, row := range r.Result.Rows {
		if _, err := rowStmt.Exec(r.ID, row.Date.Format(dateLayout), row.EquityActive, row.EquityPassive,
			row.PositionFlag, row.EdgeBps, boolInt(row.Switched)); err != nil {
			return fmt.Errorf("insert daily result %s: %w", row.Date.Format(dateLayout), err)
		}
	}

	swStmt, err := tx.Prepare(`INSERT INTO switches(run_id,seq,date,from_asset,to_asset,edge_bps,
		sell_price,sell_shares,proceeds,sell_fee,buy_price,buy_shares,notional,buy_fee,cash_after_notional,cash_after,hit)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer swStmt.Close()
	for i, sw := range r.Result.Switches {
		if _, err := swStmt.Exec(r.ID, i, sw.Date.Format(dateLayout), int(sw.From), int(sw.To), sw.EdgeBps,
			sw.SellPrice, sw.SellShares, sw.Proceeds, sw.SellFee,
			sw.BuyPrice, sw.BuyShares, sw.Notional, sw.BuyFee, sw.CashAfterNotional, sw.CashAfter, boolInt(sw.Hit)); err != nil {
			return fmt.Errorf("insert switch %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadRun reads a run back with all its rows and switches.
func (s *Store) LoadRun(id string) (Run, error) {
	var (
		r              Run
		created        int64
		start, end     string
		hit, fa, fp    sql.NullFloat64
		ac, av, as, am sql.NullFloat64
		pc, pv, ps, pm sql.NullFloat64
	)
	err := s.db.QueryRow(`SELECT id,created_at,ticker1,ticker2,start_date,end_date,
		hysteresis_bps,cooldown_days,fee_bps,slippage_bps,shares1,shares2,cash,
		switch_count,turnover,hit_rate,final_active,final_passive,
		active_cagr,active_vol,active_sharpe,active_mdd,passive_cagr,passive_vol,passive_sharpe,passive_mdd
		FROM runs WHERE id=?`, id).Scan(
		&r.ID, &created, &r.Ticker1, &r.Ticker2, &start, &end,
		&r.Trade.HysteresisBps, &r.Trade.CooldownDays, &r.Trade.FeeBps, &r.Trade.SlippageBps,
		&r.Holdings.Shares1, &r.Holdings.Shares2, &r.Holdings.Cash,
		&r.Result.Stats.SwitchCount, &r.Result.Stats.TurnoverNotional, &hit, &fa, &fp,
		&ac, &av, &as, &am, &pc, &pv, &ps, &pm,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(created, 0).UTC()
	if r.Start, err = time.Parse(dateLayout, start); err != nil {
		return Run{}, err
	}
	if r.End, err = time.Parse(dateLayout, end); err != nil {
		return Run{}, err
	}
	r.Result.Stats.HitRate = metricFrom("hit rate", hit)
	r.Active = backtest.Metrics{CAGR: metricFrom("cagr", ac), Volatility: metricFrom("volatility", av), Sharpe: metricFrom("sharpe", as), MaxDrawdown: metricFrom("max drawdown", am)}
	r.Passive = backtest.Metrics{CAGR: metricFrom("cagr", pc), Volatility: metricFrom("volatility", pv), Sharpe: metricFrom("sharpe", ps), MaxDrawdown: metricFrom("max drawdown", pm)}

	if r.Result.Rows, err = s.loadRows(id); err != nil {
		return Run{}, err
	}
	if r.Result.Switches, err = s.loadSwitches(id); err != nil {
		return Run{}, err
	}
	return r, nil
}

func (s *Store) loadRows(id string) ([]backtest.DailyResult, error) {
	rows, err := s.db.Query(`SELECT date,equity_active,equity_passive,position_flag,edge_bps,switched
		FROM daily_results WHERE run_id=? ORDER BY date ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []backtest.DailyResult
	for rows.Next() {
		var (
			row      backtest.DailyResult
			date     string
			switched int
		)
		if err := rows.Scan(&date, &row.EquityActive, &row.EquityPassive, &row.PositionFlag, &row.EdgeBps, &switched); err != nil {
			return nil, err
		}
		if row.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, err
		}
		row.Switched = switched != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) loadSwitches(id string) ([]backtest.SwitchEvent, error) {
	rows, err := s.db.Query(`SELECT date,from_asset,to_asset,edge_bps,sell_price,sell_shares,proceeds,sell_fee,
		buy_price,buy_shares,notional,buy_fee,cash_after_notional,cash_after,hit FROM switches WHERE run_id=? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []backtest.SwitchEvent
	for rows.Next() {
		var (
			sw       backtest.SwitchEvent
			date     string
			from, to int
			hit      int
		)
		if err := rows.Scan(&date, &from, &to, &sw.EdgeBps, &sw.SellPrice, &sw.SellShares, &sw.Proceeds, &sw.SellFee,
			&sw.BuyPrice, &sw.BuyShares, &sw.Notional, &sw.BuyFee, &sw.CashAfterNotional, &sw.CashAfter, &hit); err != nil {
			return nil, err
		}
		if sw.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, err
		}
		sw.From, sw.To, sw.Hit = backtest.Asset(from), backtest.Asset(to), hit != 0
		out = append(out, sw)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent runs first. A non-positive limit defaults to 10.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`SELECT id,created_at,ticker1,ticker2,start_date,end_date,switch_count,final_active,final_passive
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var (
			r          RunSummary
			created    int64
			start, end string
		)
		if err := rows.Scan(&r.ID, &created, &r.Ticker1, &r.Ticker2, &start, &end, &r.SwitchCount, &r.FinalActive, &r.FinalPassive); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		r.Start, _ = time.Parse(dateLayout, start)
		r.End, _ = time.Parse(dateLayout, end)
		out = append(out, r)
	}
	return out, rows.Err()
}
