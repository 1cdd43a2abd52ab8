package finance

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vicanso/go-charts/v2"

	"switchBotTrade/internal/backtest"
)

// EquityChart describes one rendered backtest.
type EquityChart struct {
	Title    string
	Label1   string
	Label2   string
	Rows     []backtest.DailyResult
	Subtitle string // usually the active/passive metric line
}

// RenderEquityChart draws active and passive equity on the left axis and the position
// flag (+1 asset 1, -1 asset 2) on the right axis. Returns PNG bytes.
func RenderEquityChart(c EquityChart) ([]byte, error) {
	if len(c.Rows) < 2 {
		return nil, errors.New("not enough data points")
	}
	xLabels := make([]string, len(c.Rows))
	active := make([]float64, len(c.Rows))
	passive := make([]float64, len(c.Rows))
	flags := make([]float64, len(c.Rows))
	mn, mx := math.Inf(1), math.Inf(-1)
	for i, r := range c.Rows {
		xLabels[i] = r.Date.Format("2006-01-02")
		active[i] = r.EquityActive
		passive[i] = r.EquityPassive
		flags[i] = float64(r.PositionFlag)
		mn = math.Min(mn, math.Min(r.EquityActive, r.EquityPassive))
		mx = math.Max(mx, math.Max(r.EquityActive, r.EquityPassive))
	}
	pad := (mx - mn) * 0.05
	if pad < mx*0.002 {
		pad = mx * 0.002
	}
	yMin, yMax := mn-pad, mx+pad
	if yMin < 0 {
		yMin = 0
	}
	flagMin, flagMax := -1.5, 1.5

	names := []string{"Active (switching)", "Passive (buy&hold)", positionLegend(c.Label1, c.Label2)}
	seriesList := charts.NewSeriesListDataFromValues([][]float64{active, passive, flags}, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}
	seriesList[2].AxisIndex = 1

	title := c.Title
	if title == "" {
		title = "Equity Curves (Marked to Close)"
	}
	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc(title, c.Subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xLabels, BoundaryGap: charts.FalseFlag(), SplitNumber: splitFor(len(xLabels))}),
		charts.YAxisOptionFunc(
			charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5},
			charts.YAxisOption{Min: &flagMin, Max: &flagMax, DivideCount: 2, Position: charts.PositionRight},
		),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}

func positionLegend(label1, label2 string) string {
	if label1 == "" {
		label1 = "asset 1"
	}
	if label2 == "" {
		label2 = "asset 2"
	}
	return fmt.Sprintf("Position (+1 %s, -1 %s)", label1, label2)
}

func splitFor(points int) int {
	switch {
	case points <= 30:
		return 6
	case points <= 260:
		return 10
	default:
		return 12
	}
}

// RenderIndexedPair draws both assets' closes rebased to 100 at the first aligned date.
func RenderIndexedPair(label1, label2 string, table backtest.AlignedTable) ([]byte, error) {
	if len(table) < 2 {
		return nil, errors.New("not enough data points")
	}
	base1, base2 := table[0].Asset1.Close, table[0].Asset2.Close
	if base1 <= 0 || base2 <= 0 {
		return nil, errors.New("first close is not positive")
	}
	xLabels := make([]string, len(table))
	v1 := make([]float64, len(table))
	v2 := make([]float64, len(table))
	gmin, gmax := math.Inf(1), math.Inf(-1)
	for i, row := range table {
		xLabels[i] = row.Date.Format("2006-01-02")
		v1[i] = row.Asset1.Close / base1 * 100
		v2[i] = row.Asset2.Close / base2 * 100
		gmin = math.Min(gmin, math.Min(v1[i], v2[i]))
		gmax = math.Max(gmax, math.Max(v1[i], v2[i]))
	}
	pad := (gmax - gmin) * 0.05
	if pad == 0 {
		pad = 1
	}
	yMin, yMax := gmin-pad, gmax+pad

	names := []string{strings.ToUpper(label1), strings.ToUpper(label2)}
	seriesList := charts.NewSeriesListDataFromValues([][]float64{v1, v2}, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
		seriesList[i].AxisIndex = 0
	}
	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc("Indexed • 1D", strings.Join(names, ", ")+" • base 100"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xLabels, BoundaryGap: charts.FalseFlag(), SplitNumber: splitFor(len(xLabels))}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}
