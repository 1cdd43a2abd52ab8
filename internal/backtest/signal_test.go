package backtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSignal(t *testing.T) {
	tests := []struct {
		name       string
		holding    Asset
		q1, q2     Quote
		hysteresis float64
		wantSwitch bool
		wantAction string
	}{
		{
			name:       "asset 2 gaps up past threshold",
			holding:    Asset1,
			q1:         Quote{PrevClose: 40, Open: 40},
			q2:         Quote{PrevClose: 20, Open: 20.1},
			hysteresis: 7,
			wantSwitch: true,
			wantAction: "Switch to SU.TO (sell VEQT.TO at open; buy SU.TO)",
		},
		{
			name:       "edge inside hysteresis",
			holding:    Asset1,
			q1:         Quote{PrevClose: 40, Open: 40},
			q2:         Quote{PrevClose: 20, Open: 20.01},
			hysteresis: 7,
			wantAction: "Hold VEQT.TO (inside hysteresis or not superior)",
		},
		{
			name:       "edge equal to threshold holds",
			holding:    Asset1,
			q1:         Quote{PrevClose: 100, Open: 100},
			q2:         Quote{PrevClose: 100, Open: 100.5},
			hysteresis: 50,
			wantAction: "Hold VEQT.TO (inside hysteresis or not superior)",
		},
		{
			name:       "holding asset 2 and asset 1 gaps up",
			holding:    Asset2,
			q1:         Quote{PrevClose: 40, Open: 41},
			q2:         Quote{PrevClose: 20, Open: 20},
			hysteresis: 7,
			wantSwitch: true,
			wantAction: "Switch to VEQT.TO (sell SU.TO at open; buy VEQT.TO)",
		},
		{
			name:       "holding the stronger asset",
			holding:    Asset2,
			q1:         Quote{PrevClose: 40, Open: 39},
			q2:         Quote{PrevClose: 20, Open: 20},
			hysteresis: 7,
			wantAction: "Hold SU.TO (inside hysteresis or not superior)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := EvaluateSignal(SignalInput{
				Date:          dayN(0),
				Asset1:        tt.q1,
				Asset2:        tt.q2,
				Label1:        "VEQT.TO",
				Label2:        "SU.TO",
				Holding:       tt.holding,
				HysteresisBps: tt.hysteresis,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSwitch, sig.Decision.Switch)
			assert.Equal(t, tt.wantAction, sig.Action)
			assert.True(t, sig.Decision.CooldownOK)
		})
	}
}

func TestEvaluateSignal_MatchesEngine(t *testing.T) {
	table := mkRandomWalk(21, 80)
	p := TradeParams{HysteresisBps: 6}
	res, err := Run(table, Holdings{Shares1: 100}, p)
	require.NoError(t, err)

	holding := Asset1
	for i := 1; i < len(table); i++ {
		sig, err := EvaluateSignal(SignalInput{
			Date:          table[i].Date,
			Asset1:        Quote{PrevClose: table[i-1].Asset1.Close, Open: table[i].Asset1.Open},
			Asset2:        Quote{PrevClose: table[i-1].Asset2.Close, Open: table[i].Asset2.Open},
			Holding:       holding,
			HysteresisBps: p.HysteresisBps,
		})
		require.NoError(t, err)
		assert.Equal(t, res.Rows[i].Switched, sig.Decision.Switch, "date %s", table[i].Date.Format(dateLayout))
		assert.InDelta(t, res.Rows[i].EdgeBps, sig.Decision.Edge.Bps, 1e-9)
		holding = sig.Decision.Target
	}
}

func TestEvaluateSignal_Errors(t *testing.T) {
	_, err := EvaluateSignal(SignalInput{
		Asset1:  Quote{PrevClose: 1, Open: 1},
		Asset2:  Quote{PrevClose: 1, Open: 1},
		Holding: 0,
	})
	assert.ErrorContains(t, err, "holding")

	_, err = EvaluateSignal(SignalInput{
		Date:    dayN(0),
		Asset1:  Quote{PrevClose: 0, Open: 1},
		Asset2:  Quote{PrevClose: 1, Open: 1},
		Holding: Asset1,
	})
	var de *DataIntegrityError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, Asset1, de.Asset)
}

func TestEvaluateSignal_DefaultLabels(t *testing.T) {
	sig, err := EvaluateSignal(SignalInput{
		Asset1:  Quote{PrevClose: 10, Open: 10},
		Asset2:  Quote{PrevClose: 10, Open: 10},
		Holding: Asset2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hold B (inside hysteresis or not superior)", sig.Action)
}
