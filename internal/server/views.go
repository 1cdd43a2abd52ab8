package server

import (
	"time"

	"switchBotTrade/internal/backtest"
	"switchBotTrade/internal/storage"
)

const dateLayout = "2006-01-02"

type summaryView struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Ticker1      string    `json:"ticker1"`
	Ticker2      string    `json:"ticker2"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	SwitchCount  int       `json:"switch_count"`
	FinalActive  float64   `json:"final_active"`
	FinalPassive float64   `json:"final_passive"`
}

// metricsView reports undefined metrics as null
type metricsView struct {
	CAGR        *float64 `json:"cagr"`
	Volatility  *float64 `json:"volatility"`
	Sharpe      *float64 `json:"sharpe"`
	MaxDrawdown *float64 `json:"max_drawdown"`
}

type rowView struct {
	Date          string  `json:"date"`
	EquityActive  float64 `json:"equity_active"`
	EquityPassive float64 `json:"equity_passive"`
	PositionFlag  int     `json:"position_flag"`
	EdgeBps       float64 `json:"edge_bps"`
	Switched      bool    `json:"switched"`
}

type runView struct {
	summaryView
	HysteresisBps float64     `json:"hysteresis_bps"`
	CooldownDays  int         `json:"cooldown_days"`
	FeeBps        float64     `json:"fee_bps"`
	SlippageBps   float64     `json:"slippage_bps"`
	Turnover      float64     `json:"turnover"`
	HitRate       *float64    `json:"hit_rate"`
	Active        metricsView `json:"active"`
	Passive       metricsView `json:"passive"`
	Rows          []rowView   `json:"rows"`
}

func metricPtr(m backtest.Metric) *float64 {
	if !m.OK() {
		return nil
	}
	v := m.Value
	return &v
}

func toMetricsView(m backtest.Metrics) metricsView {
	return metricsView{
		CAGR:        metricPtr(m.CAGR),
		Volatility:  metricPtr(m.Volatility),
		Sharpe:      metricPtr(m.Sharpe),
		MaxDrawdown: metricPtr(m.MaxDrawdown),
	}
}

func toSummaryView(r storage.RunSummary) summaryView {
	return summaryView{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		Ticker1:      r.Ticker1,
		Ticker2:      r.Ticker2,
		Start:        r.Start.Format(dateLayout),
		End:          r.End.Format(dateLayout),
		SwitchCount:  r.SwitchCount,
		FinalActive:  r.FinalActive,
		FinalPassive: r.FinalPassive,
	}
}

func toRunView(r storage.Run) runView {
	var fa, fp float64
	if n := len(r.Result.Rows); n > 0 {
		fa, fp = r.Result.Rows[n-1].EquityActive, r.Result.Rows[n-1].EquityPassive
	}
	v := runView{
		summaryView: toSummaryView(storage.RunSummary{
			ID: r.ID, CreatedAt: r.CreatedAt, Ticker1: r.Ticker1, Ticker2: r.Ticker2, Start: r.Start, End: r.End,
			SwitchCount: r.Result.Stats.SwitchCount, FinalActive: fa, FinalPassive: fp,
		}),
		HysteresisBps: r.Trade.HysteresisBps,
		CooldownDays:  r.Trade.CooldownDays,
		FeeBps:        r.Trade.FeeBps,
		SlippageBps:   r.Trade.SlippageBps,
		Turnover:      r.Result.Stats.TurnoverNotional,
		HitRate:       metricPtr(r.Result.Stats.HitRate),
		Active:        toMetricsView(r.Active),
		Passive:       toMetricsView(r.Passive),
		Rows:          make([]rowView, 0, len(r.Result.Rows)),
	}
	for _, row := range r.Result.Rows {
		v.Rows = append(v.Rows, rowView{
			Date:          row.Date.Format(dateLayout),
			EquityActive:  row.EquityActive,
			EquityPassive: row.EquityPassive,
			PositionFlag:  row.PositionFlag,
			EdgeBps:       row.EdgeBps,
			Switched:      row.Switched,
		})
	}
	return v
}
