// Package adaptive throttles and boosts each strategy from its own
// realized results. Overrides are always bounded multipliers (or a bounded
// additive threshold delta). A cold strategy is throttled toward the
// floor, never disabled: a throttled strategy can still carry positive
// expectancy while a disabled one can never recover.
package adaptive

import "time"

// TradeRecord is one closed trade outcome.
type TradeRecord struct {
	StrategyID string    `json:"strategy_id"`
	PnLPct     float64   `json:"pnl_pct"`
	Win        bool      `json:"win"`
	Timestamp  time.Time `json:"timestamp"`
}

// window is a fixed-capacity ring buffer of trade records. The oldest
// record is evicted on insert when full.
type window struct {
	records []TradeRecord
	next    int
	full    bool
}

func newWindow(capacity int) *window {
	return &window{records: make([]TradeRecord, capacity)}
}

func (w *window) add(r TradeRecord) {
	w.records[w.next] = r
	w.next = (w.next + 1) % len(w.records)
	if w.next == 0 {
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.records)
	}
	return w.next
}

// ordered returns the records oldest-first.
func (w *window) ordered() []TradeRecord {
	n := w.len()
	out := make([]TradeRecord, 0, n)
	if w.full {
		out = append(out, w.records[w.next:]...)
	}
	out = append(out, w.records[:w.next]...)
	return out
}

// Stats summarizes a strategy's rolling window.
type Stats struct {
	Trades       int     `json:"trades"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	// Streak is the current run: positive for consecutive wins,
	// negative for consecutive losses.
	Streak int `json:"streak"`
	// Trend is the normalized slope of the cumulative P&L over the
	// window, in [-1, 1].
	Trend float64 `json:"trend"`
}

func computeStats(records []TradeRecord) Stats {
	s := Stats{Trades: len(records)}
	if len(records) == 0 {
		return s
	}

	wins := 0
	grossWin, grossLoss := 0.0, 0.0
	for _, r := range records {
		if r.Win {
			wins++
			grossWin += r.PnLPct
		} else {
			grossLoss -= r.PnLPct
		}
	}
	s.WinRate = float64(wins) / float64(len(records))
	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		s.ProfitFactor = 10 // capped: all wins, no losses
	default:
		s.ProfitFactor = 1
	}

	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Win != records[len(records)-1].Win {
			break
		}
		if records[i].Win {
			s.Streak++
		} else {
			s.Streak--
		}
	}

	s.Trend = regressionTrend(records)
	return s
}

// regressionTrend fits a least-squares line through the cumulative P&L
// sequence and maps the slope to [-1, 1] against the window's mean
// absolute outcome, so the measure is scale-free.
func regressionTrend(records []TradeRecord) float64 {
	n := len(records)
	if n < 2 {
		return 0
	}
	cum := make([]float64, n)
	run := 0.0
	meanAbs := 0.0
	for i, r := range records {
		run += r.PnLPct
		cum[i] = run
		if r.PnLPct >= 0 {
			meanAbs += r.PnLPct
		} else {
			meanAbs -= r.PnLPct
		}
	}
	meanAbs /= float64(n)
	if meanAbs == 0 {
		return 0
	}

	// slope of cum over index
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range cum {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	den := fn*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	slope := (fn*sumXY - sumX*sumY) / den

	t := slope / meanAbs
	if t > 1 {
		t = 1
	}
	if t < -1 {
		t = -1
	}
	return t
}
