package backtest

import (
	"math/rand"
	"time"
)

var day0 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func dayN(n int) time.Time { return day0.AddDate(0, 0, n) }

func mkRow(n int, o1, c1, o2, c2 float64) AlignedRow {
	return AlignedRow{
		Date:   dayN(n),
		Asset1: PriceRecord{Open: o1, Close: c1},
		Asset2: PriceRecord{Open: o2, Close: c2},
	}
}

// mkAlternating builds a table whose edge flips sign every day: +100 bps on odd
// days, -100 bps on even days after the first. Closes stay at 100.
func mkAlternating(n int) AlignedTable {
	out := make(AlignedTable, n)
	for i := 0; i < n; i++ {
		switch {
		case i == 0:
			out[i] = mkRow(i, 100, 100, 100, 100)
		case i%2 == 1:
			out[i] = mkRow(i, 100, 100, 101, 100)
		default:
			out[i] = mkRow(i, 101, 100, 100, 100)
		}
	}
	return out
}

// mkRandomWalk builds a deterministic noisy table with weekend gaps in the dates.
func mkRandomWalk(seed int64, n int) AlignedTable {
	rng := rand.New(rand.NewSource(seed))
	out := make(AlignedTable, 0, n)
	c1, c2 := 50.0, 80.0
	d := 0
	for len(out) < n {
		date := dayN(d)
		d++
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		o1 := c1 * (1 + rng.NormFloat64()*0.004)
		o2 := c2 * (1 + rng.NormFloat64()*0.004)
		c1 = o1 * (1 + rng.NormFloat64()*0.01)
		c2 = o2 * (1 + rng.NormFloat64()*0.01)
		out = append(out, AlignedRow{
			Date:   date,
			Asset1: PriceRecord{Open: o1, Close: c1},
			Asset2: PriceRecord{Open: o2, Close: c2},
		})
	}
	return out
}
