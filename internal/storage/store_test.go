package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchBotTrade/internal/backtest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite("file:" + filepath.Join(t.TempDir(), "test.db") + "?_fk=1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitSchema(db))
	require.NoError(t, InitSchema(db), "schema creation is idempotent")
	return NewStore(db)
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func sampleRun(id string, created time.Time) Run {
	return Run{
		ID:        id,
		CreatedAt: created,
		Ticker1:   "VEQT.TO",
		Ticker2:   "SU.TO",
		Start:     day(2024, 1, 1),
		End:       day(2024, 1, 31),
		Trade:     backtest.TradeParams{HysteresisBps: 7, CooldownDays: 7, FeeBps: 1, SlippageBps: 2},
		Holdings:  backtest.Holdings{Shares1: 500, Cash: 12.5},
		Result: backtest.Result{
			Rows: []backtest.DailyResult{
				{Date: day(2024, 1, 2), EquityActive: 20012.5, EquityPassive: 20012.5, PositionFlag: 1},
				{Date: day(2024, 1, 3), EquityActive: 20100, EquityPassive: 19990, PositionFlag: -1, EdgeBps: 31.25, Switched: true},
			},
			Switches: []backtest.SwitchEvent{{
				Date: day(2024, 1, 3), From: backtest.Asset1, To: backtest.Asset2, EdgeBps: 31.25,
				SellPrice: 40, SellShares: 500, Proceeds: 20000, SellFee: 2,
				BuyPrice: 55, BuyShares: 363, Notional: 19965, BuyFee: 1.99, CashAfterNotional: 33, CashAfter: 31.01, Hit: true,
			}},
			Stats: backtest.RunStats{SwitchCount: 1, TurnoverNotional: 39965, HitRate: backtest.Metric{Value: 1}},
		},
		Active: backtest.Metrics{
			CAGR:        backtest.Metric{Value: 0.12},
			Volatility:  backtest.Metric{Value: 0.2},
			Sharpe:      backtest.Metric{Err: backtest.ErrUndefined},
			MaxDrawdown: backtest.Metric{Value: -0.05},
		},
		Passive: backtest.Metrics{
			CAGR:        backtest.Metric{Value: 0.08},
			Volatility:  backtest.Metric{Value: 0.15},
			Sharpe:      backtest.Metric{Value: 0.53},
			MaxDrawdown: backtest.Metric{Value: -0.07},
		},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	want := sampleRun("run-1", created)
	require.NoError(t, s.SaveRun(want))

	got, err := s.LoadRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, want.Start, got.Start)
	assert.Equal(t, want.End, got.End)
	assert.Equal(t, want.Trade, got.Trade)
	assert.Equal(t, want.Holdings, got.Holdings)
	assert.Equal(t, want.Result.Rows, got.Result.Rows)
	assert.Equal(t, want.Result.Switches, got.Result.Switches)
	assert.Equal(t, want.Result.Stats.SwitchCount, got.Result.Stats.SwitchCount)
	assert.Equal(t, 1.0, got.Result.Stats.HitRate.Value)

	assert.Equal(t, 0.12, got.Active.CAGR.Value)
	assert.ErrorIs(t, got.Active.Sharpe.Err, backtest.ErrUndefined)
	assert.Equal(t, 0.53, got.Passive.Sharpe.Value)
}

func TestSaveRun_DuplicateIsAtomic(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun("dup", time.Unix(1700000000, 0))
	require.NoError(t, s.SaveRun(run))

	run.Result.Rows = append(run.Result.Rows, backtest.DailyResult{Date: day(2024, 1, 4)})
	require.Error(t, s.SaveRun(run))

	got, err := s.LoadRun("dup")
	require.NoError(t, err)
	assert.Len(t, got.Result.Rows, 2, "failed save leaves no partial rows")
}

func TestLoadRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	base := time.Unix(1700000000, 0)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, 20100.0, runs[0].FinalActive)
	assert.Equal(t, 19990.0, runs[0].FinalPassive)
	assert.Equal(t, 1, runs[0].SwitchCount)
	assert.Equal(t, day(2024, 1, 1), runs[0].Start)

	all, err := s.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSignals(t *testing.T) {
	s := newTestStore(t)
	pair := PairKey("vfv.to", "VEQT.TO")
	assert.Equal(t, "VFV.TO/VEQT.TO", pair)

	_, err := s.LastSignal(pair)
	assert.ErrorIs(t, err, ErrNotFound)

	first := SignalRecord{Pair: pair, Date: day(2024, 1, 8), CreatedAt: time.Unix(1704724500, 0).UTC(),
		Holding: backtest.Asset1, Target: backtest.Asset1, EdgeBps: 3, Message: "hold"}
	second := SignalRecord{Pair: pair, Date: day(2024, 1, 9), CreatedAt: time.Unix(1704810900, 0).UTC(),
		Holding: backtest.Asset1, Target: backtest.Asset2, EdgeBps: 12.5, Switched: true, Message: "switch"}
	other := SignalRecord{Pair: PairKey("A", "B"), Date: day(2024, 1, 10), CreatedAt: time.Unix(1704897300, 0).UTC(),
		Holding: backtest.Asset2, Target: backtest.Asset2}
	for _, rec := range []SignalRecord{first, second, other} {
		require.NoError(t, s.SaveSignal(rec))
	}

	got, err := s.LastSignal(pair)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")
	db, err := OpenFile(path)
	require.NoError(t, err)
	defer db.Close()
	assert.FileExists(t, path)

	_, err = NewStore(db).ListRuns(1)
	assert.NoError(t, err, "schema is in place")
}

func TestOpenFile_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := OpenFile(filepath.Join(blocker, "sub", "runs.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db dir")
}
