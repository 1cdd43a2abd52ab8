package backtest

// PassiveBaseline values the initial holdings at each date's closes. It never looks at
// engine state, so a switching bug cannot leak into the benchmark.
func PassiveBaseline(table AlignedTable, init Holdings) Curve {
	out := make(Curve, len(table))
	for i, row := range table {
		out[i] = EquityPoint{
			Date:  row.Date,
			Value: float64(init.Shares1)*row.Asset1.Close + float64(init.Shares2)*row.Asset2.Close + init.Cash,
		}
	}
	return out
}
