// Package strategy contains the signal generators. Each strategy scores a
// bar additively from independent sub-signals, with buy-side and sell-side
// rules kept as exact mirror images. Asymmetric thresholds silently bias
// the system toward one direction, which is the main correctness hazard in
// this package and the reason the scoring helpers below exist.
package strategy

import (
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// TradeSignal is the output of one strategy evaluation. Signals are
// produced fresh every bar and never persisted across ticks.
type TradeSignal struct {
	Symbol     string
	Timestamp  time.Time
	Direction  types.Direction
	Confidence float64 // in [0,1]
	Price      float64 // reference price (bar close)
	// StopDistance is the absolute price distance from entry to stop.
	StopDistance float64
	// RewardRisk is the target distance expressed as a multiple of
	// StopDistance.
	RewardRisk float64
	StrategyID string
	Rationale  []string
}

// None returns a zero-confidence non-signal. Strategies return it for any
// input they cannot score, including malformed or too-short histories.
func None(symbol, strategyID string, ts time.Time) *TradeSignal {
	return &TradeSignal{
		Symbol:     symbol,
		Timestamp:  ts,
		Direction:  types.DirectionNone,
		StrategyID: strategyID,
	}
}

// Params are the per-strategy tunables. Stops and targets are strategy
// properties, not global constants.
type Params struct {
	// MinConfidence is the post-filter confidence floor the risk
	// validator enforces for this strategy.
	MinConfidence float64 `json:"min_confidence"`
	// StopATR sizes the stop distance as a multiple of the bar's ATR.
	StopATR float64 `json:"stop_atr"`
	// RewardRisk is the minimum target:stop ratio.
	RewardRisk float64 `json:"reward_risk"`
}

// Strategy is the shared evaluation contract. Evaluate never returns an
// error and never panics: inputs it cannot score yield a NONE signal.
type Strategy interface {
	ID() string
	Params() Params
	Evaluate(snap *features.Snapshot) *TradeSignal
}

// score accumulates mirrored sub-signal contributions. Callers add the
// same delta through Long or Short so both sides stay symmetric by
// construction.
type score struct {
	confidence float64
	rationale  []string
}

func (s *score) add(delta float64, reason string) {
	s.confidence += delta
	s.rationale = append(s.rationale, reason)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (s *score) signal(symbol, id string, snap *features.Snapshot, dir types.Direction, p Params) *TradeSignal {
	return &TradeSignal{
		Symbol:       symbol,
		Timestamp:    snap.Timestamp,
		Direction:    dir,
		Confidence:   clamp01(s.confidence),
		Price:        snap.Primary.Close,
		StopDistance: snap.Primary.ATR * p.StopATR,
		RewardRisk:   p.RewardRisk,
		StrategyID:   id,
		Rationale:    s.rationale,
	}
}

// usable reports whether the snapshot carries enough signal to score.
func usable(snap *features.Snapshot) bool {
	return snap != nil && snap.Primary.Close > 0 && snap.Primary.ATR > 0
}

func timestampOf(snap *features.Snapshot) time.Time {
	if snap == nil {
		return time.Time{}
	}
	return snap.Timestamp
}

// Selector maps a regime to the strategy that trades it. The mapping is a
// fixed lookup, not a dispatch hierarchy.
type Selector struct {
	trend    Strategy
	meanRev  Strategy
	breakout Strategy
}

// NewSelector wires the three strategies to their regimes.
func NewSelector(trend, meanRev, breakout Strategy) *Selector {
	return &Selector{trend: trend, meanRev: meanRev, breakout: breakout}
}

// ForRegime returns the strategy responsible for the regime. Weak trends
// use the trend strategy; the confidence penalty is applied downstream by
// the filter chain.
func (s *Selector) ForRegime(r regime.Regime) Strategy {
	switch r {
	case regime.TrendingStrong, regime.TrendingWeak:
		return s.trend
	case regime.Volatile:
		return s.breakout
	default:
		return s.meanRev
	}
}

// All returns every registered strategy, keyed by ID.
func (s *Selector) All() []Strategy {
	return []Strategy{s.trend, s.meanRev, s.breakout}
}

// ByID returns the strategy with the given ID, or nil.
func (s *Selector) ByID(id string) Strategy {
	for _, st := range s.All() {
		if st.ID() == id {
			return st
		}
	}
	return nil
}
