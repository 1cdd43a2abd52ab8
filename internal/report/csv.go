package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"switchBotTrade/internal/backtest"
)

var dailyHeader = []string{"date", "equity_active", "equity_passive", "position_flag", "edge_bps", "switched"}

var switchHeader = []string{
	"date", "from", "to", "edge_bps",
	"sell_price", "sell_shares", "proceeds", "sell_fee",
	"buy_price", "buy_shares", "notional", "buy_fee",
	"cash_after", "hit",
}

// fixed renders v with the given decimal places; non-finite values become empty cells.
func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// WriteCSV writes one line per daily result row.
func WriteCSV(w io.Writer, rows []backtest.DailyResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dailyHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Date.Format(dateLayout),
			fixed(r.EquityActive, 2),
			fixed(r.EquityPassive, 2),
			strconv.Itoa(r.PositionFlag),
			fixed(r.EdgeBps, 4),
			strconv.FormatBool(r.Switched),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSwitchesCSV writes both legs of every executed switch, naming assets by label.
func WriteSwitchesCSV(w io.Writer, label1, label2 string, switches []backtest.SwitchEvent) error {
	name := func(a backtest.Asset) string {
		if a == backtest.Asset1 {
			return label1
		}
		return label2
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(switchHeader); err != nil {
		return err
	}
	for _, s := range switches {
		rec := []string{
			s.Date.Format(dateLayout),
			name(s.From),
			name(s.To),
			fixed(s.EdgeBps, 4),
			fixed(s.SellPrice, 4),
			strconv.FormatInt(s.SellShares, 10),
			fixed(s.Proceeds, 2),
			fixed(s.SellFee, 2),
			fixed(s.BuyPrice, 4),
			strconv.FormatInt(s.BuyShares, 10),
			fixed(s.Notional, 2),
			fixed(s.BuyFee, 2),
			fixed(s.CashAfter, 2),
			strconv.FormatBool(s.Hit),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
