package backtest

import (
	"fmt"
	"math"
	"time"
)

// State is the portfolio threaded through Step. Holding is the machine's state:
// Asset1 is HoldingAsset1, Asset2 is HoldingAsset2.
type State struct {
	Shares1    int64
	Shares2    int64
	Cash       float64
	Holding    Asset
	LastSwitch time.Time // zero until the first switch

	SwitchCount     int
	Turnover        float64
	Hits            int
	HitObservations int

	prev    AlignedRow
	hasPrev bool
}

// NewState starts a portfolio from its initial holdings. The machine starts in
// HoldingAsset1 exactly when the asset 1 share count is positive.
func NewState(h Holdings) State {
	holding := Asset2
	if h.Shares1 > 0 {
		holding = Asset1
	}
	return State{
		Shares1: h.Shares1,
		Shares2: h.Shares2,
		Cash:    h.Cash,
		Holding: holding,
	}
}

// Equity marks the portfolio to the given closes
func (s State) Equity(close1, close2 float64) float64 {
	return float64(s.Shares1)*close1 + float64(s.Shares2)*close2 + s.Cash
}

// StepResult is what a single date produces. Row.EquityPassive is left zero; Run
// fills it from the baseline.
type StepResult struct {
	Row      DailyResult
	Decision Decision
	Switch   *SwitchEvent
}

// Step processes one date. It is a pure function of its inputs: prior is not modified.
func Step(prior State, row AlignedRow, p TradeParams) (State, StepResult, error) {
	s := prior
	var prev *AlignedRow
	if s.hasPrev {
		if !row.Date.After(s.prev.Date) {
			return prior, StepResult{}, &DataIntegrityError{
				Date:   row.Date,
				Reason: fmt.Sprintf("date does not follow %s", s.prev.Date.Format(dateLayout)),
			}
		}
		last := s.prev
		prev = &last
	}

	dec, err := Evaluate(prev, row, s.Holding, s.LastSwitch, p)
	if err != nil {
		return prior, StepResult{}, err
	}

	res := StepResult{Decision: dec}
	if dec.Switch {
		ev, err := s.execute(row, dec, p)
		if err != nil {
			return prior, StepResult{}, err
		}
		res.Switch = &ev
	}

	res.Row = DailyResult{
		Date:         row.Date,
		EquityActive: s.Equity(row.Asset1.Close, row.Asset2.Close),
		PositionFlag: s.Holding.Flag(),
		EdgeBps:      dec.Edge.Bps,
		Switched:     dec.Switch,
	}
	s.prev = row
	s.hasPrev = true
	return s, res, nil
}

// execute liquidates the held asset and reinvests all cash in the target at the open.
func (s *State) execute(row AlignedRow, dec Decision, p TradeParams) (SwitchEvent, error) {
	from, to := dec.Holding, dec.Target
	fromRec, toRec := row.Asset1, row.Asset2
	if from == Asset2 {
		fromRec, toRec = row.Asset2, row.Asset1
	}
	if toRec.Open <= 0 {
		return SwitchEvent{}, &DataIntegrityError{Date: row.Date, Asset: to, Reason: fmt.Sprintf("open %.6g is not positive", toRec.Open)}
	}

	ev := SwitchEvent{Date: row.Date, From: from, To: to, EdgeBps: dec.Edge.Bps}

	// sell leg
	ev.SellPrice = FillPrice(fromRec.Open, p.SlippageBps, Sell)
	if from == Asset1 {
		ev.SellShares = s.Shares1
		s.Shares1 = 0
	} else {
		ev.SellShares = s.Shares2
		s.Shares2 = 0
	}
	ev.Proceeds = float64(ev.SellShares) * ev.SellPrice
	ev.SellFee = Fee(ev.Proceeds, p.FeeBps)
	s.Cash += ev.Proceeds
	s.Cash -= ev.SellFee
	s.Turnover += math.Abs(ev.Proceeds)

	// buy leg
	ev.BuyPrice = FillPrice(toRec.Open, p.SlippageBps, Buy)
	ev.BuyShares = affordableShares(s.Cash, ev.BuyPrice)
	ev.Notional = float64(ev.BuyShares) * ev.BuyPrice
	ev.BuyFee = Fee(ev.Notional, p.FeeBps)
	if to == Asset1 {
		s.Shares1 += ev.BuyShares
	} else {
		s.Shares2 += ev.BuyShares
	}
	s.Cash -= ev.Notional
	ev.CashAfterNotional = s.Cash
	s.Cash -= ev.BuyFee
	s.Turnover += math.Abs(ev.Notional)
	ev.CashAfter = s.Cash

	s.Holding = to
	s.LastSwitch = row.Date
	s.SwitchCount++

	ev.Hit = toRec.Close > fromRec.Close
	s.HitObservations++
	if ev.Hit {
		s.Hits++
	}
	return ev, nil
}

// Stats summarizes the accumulated trading activity
func (s State) Stats() RunStats {
	st := RunStats{SwitchCount: s.SwitchCount, TurnoverNotional: s.Turnover}
	if s.HitObservations == 0 {
		st.HitRate = Metric{Err: &InsufficientHistoryError{Metric: "hit_rate", Have: 0, Need: 1}}
	} else {
		st.HitRate = Metric{Value: float64(s.Hits) / float64(s.HitObservations)}
	}
	return st
}

// Validate rejects parameters outside their documented domain
func (p TradeParams) Validate() error {
	if math.IsNaN(p.HysteresisBps) {
		return fmt.Errorf("hysteresis_bps must be a number")
	}
	if p.CooldownDays < 0 {
		return fmt.Errorf("cooldown_days must be >= 0, got %d", p.CooldownDays)
	}
	if p.FeeBps < 0 || math.IsNaN(p.FeeBps) {
		return fmt.Errorf("fee_bps must be >= 0, got %v", p.FeeBps)
	}
	if p.SlippageBps < 0 || math.IsNaN(p.SlippageBps) {
		return fmt.Errorf("slippage_bps must be >= 0, got %v", p.SlippageBps)
	}
	return nil
}

// Validate rejects negative starting positions
func (h Holdings) Validate() error {
	if h.Shares1 < 0 || h.Shares2 < 0 {
		return fmt.Errorf("initial shares must be >= 0, got %d and %d", h.Shares1, h.Shares2)
	}
	if h.Cash < 0 || math.IsNaN(h.Cash) {
		return fmt.Errorf("initial cash must be >= 0, got %v", h.Cash)
	}
	return nil
}

// Run folds Step over the aligned table and merges in the passive baseline.
// Any error aborts the run without partial results.
func Run(table AlignedTable, init Holdings, p TradeParams) (Result, error) {
	if len(table) == 0 {
		return Result{}, &NoDataError{Table: "aligned", Reason: "table is empty"}
	}
	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid trade params: %w", err)
	}
	if err := init.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid holdings: %w", err)
	}

	passive := PassiveBaseline(table, init)
	rows := make([]DailyResult, 0, len(table))
	var switches []SwitchEvent

	state := NewState(init)
	for i, row := range table {
		next, res, err := Step(state, row, p)
		if err != nil {
			return Result{}, err
		}
		res.Row.EquityPassive = passive[i].Value
		rows = append(rows, res.Row)
		if res.Switch != nil {
			switches = append(switches, *res.Switch)
		}
		state = next
	}

	return Result{Rows: rows, Switches: switches, Stats: state.Stats()}, nil
}
