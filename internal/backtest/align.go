package backtest

import (
	"sort"
	"time"
)

// AlignTwo inner-joins two per-asset tables by calendar date.
// Bars with a missing open or close are dropped first, then duplicate dates collapse to
// the first remaining occurrence in input order. The result is sorted ascending.
func AlignTwo(left, right PriceTable) (AlignedTable, error) {
	if len(left) == 0 {
		return nil, &NoDataError{Table: "asset1", Reason: "price table is empty"}
	}
	if len(right) == 0 {
		return nil, &NoDataError{Table: "asset2", Reason: "price table is empty"}
	}

	l := firstByDate(left)
	r := firstByDate(right)

	out := make(AlignedTable, 0, len(l))
	for day, a := range l {
		b, ok := r[day]
		if !ok {
			continue
		}
		out = append(out, AlignedRow{Date: day, Asset1: a, Asset2: b})
	}
	if len(out) == 0 {
		return nil, &NoDataError{Table: "aligned", Reason: "no usable dates common to both assets"}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// firstByDate keys usable bars by calendar day, keeping the first occurrence.
func firstByDate(t PriceTable) map[time.Time]PriceRecord {
	m := make(map[time.Time]PriceRecord, len(t))
	for _, b := range t {
		rec := PriceRecord{Open: b.Open, Close: b.Close}
		if !rec.usable() {
			continue
		}
		day := Day(b.Date)
		if _, seen := m[day]; seen {
			continue
		}
		m[day] = rec
	}
	return m
}

// Day truncates t to its calendar date, expressed as midnight UTC.
// The calendar date is read in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from one date to a later one.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}
