// Package filter implements the ordered signal filter chain. Each filter
// is a pure function over (signal, context) that passes the signal
// through, adjusts its confidence, or vetoes it by forcing the direction
// to NONE. A veto short-circuits the rest of the chain.
package filter

import (
	"fmt"

	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/strategy"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// Context carries the market state filters read. The sentiment and
// positioning inputs are optional collaborator feeds; their Has flags are
// false when the feed is unavailable, and the corresponding filters pass
// signals through untouched.
type Context struct {
	Snapshot *features.Snapshot
	Regime   regime.Regime

	FundingRate float64
	HasFunding  bool

	// OrderBookImbalance is bid minus ask depth over their sum, in [-1,1].
	OrderBookImbalance float64
	HasOrderBook       bool

	// Sentiment is an aggregate news/positioning score in [-1,1].
	Sentiment    float64
	HasSentiment bool
}

// Filter adjusts or vetoes a signal.
type Filter interface {
	Name() string
	Apply(sig *strategy.TradeSignal, ctx *Context) *strategy.TradeSignal
}

// Chain applies filters in order, stopping at the first veto. Order
// matters: regime and trend confirmation run before the external
// sentiment inputs so a vetoed signal skips the remaining work.
type Chain struct {
	filters []Filter
}

func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// DefaultChain returns the standard ordering.
func DefaultChain(cfg Config) *Chain {
	return NewChain(
		WeakTrendPenalty{Penalty: cfg.WeakTrendPenalty},
		TrendConfirmation{Boost: cfg.TrendAlignBoost},
		Choppiness{ATRRatio: cfg.ChopATRRatio, ADXCeiling: cfg.ChopADXCeiling, Penalty: cfg.ChopPenalty},
		FundingCrowding{Threshold: cfg.FundingThreshold, Penalty: cfg.FundingPenalty},
		OrderBookPressure{Threshold: cfg.OrderBookThreshold, Delta: cfg.OrderBookDelta},
		SentimentGate{Threshold: cfg.SentimentThreshold, Penalty: cfg.SentimentPenalty},
	)
}

// Apply runs the chain. The returned signal may be the input signal
// mutated in place; callers treat it as the chain's output either way.
func (c *Chain) Apply(sig *strategy.TradeSignal, ctx *Context) *strategy.TradeSignal {
	for _, f := range c.filters {
		if sig == nil || sig.Direction == types.DirectionNone {
			return sig
		}
		sig = f.Apply(sig, ctx)
	}
	return sig
}

// Config holds the filter tunables with documented defaults.
type Config struct {
	WeakTrendPenalty   float64 `json:"weak_trend_penalty"`
	TrendAlignBoost    float64 `json:"trend_align_boost"`
	ChopATRRatio       float64 `json:"chop_atr_ratio"`
	ChopADXCeiling     float64 `json:"chop_adx_ceiling"`
	ChopPenalty        float64 `json:"chop_penalty"`
	FundingThreshold   float64 `json:"funding_threshold"`
	FundingPenalty     float64 `json:"funding_penalty"`
	OrderBookThreshold float64 `json:"order_book_threshold"`
	OrderBookDelta     float64 `json:"order_book_delta"`
	SentimentThreshold float64 `json:"sentiment_threshold"`
	SentimentPenalty   float64 `json:"sentiment_penalty"`
}

// DefaultConfig returns the standard filter settings.
func DefaultConfig() Config {
	return Config{
		WeakTrendPenalty:   0.08,
		TrendAlignBoost:    0.05,
		ChopATRRatio:       1.3,
		ChopADXCeiling:     20,
		ChopPenalty:        0.10,
		FundingThreshold:   0.0001,
		FundingPenalty:     0.05,
		OrderBookThreshold: 0.2,
		OrderBookDelta:     0.05,
		SentimentThreshold: 0.5,
		SentimentPenalty:   0.05,
	}
}

func adjust(sig *strategy.TradeSignal, delta float64, reason string) *strategy.TradeSignal {
	c := sig.Confidence + delta
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	sig.Confidence = c
	sig.Rationale = append(sig.Rationale, reason)
	return sig
}

func veto(sig *strategy.TradeSignal, reason string) *strategy.TradeSignal {
	sig.Direction = types.DirectionNone
	sig.Confidence = 0
	sig.Rationale = append(sig.Rationale, reason)
	return sig
}

// WeakTrendPenalty docks confidence when the regime is TRENDING_WEAK.
// The classifier stays a pure labeler; the penalty lives here.
type WeakTrendPenalty struct {
	Penalty float64
}

func (WeakTrendPenalty) Name() string { return "weak_trend_penalty" }

func (f WeakTrendPenalty) Apply(sig *strategy.TradeSignal, ctx *Context) *strategy.TradeSignal {
	if ctx.Regime != regime.TrendingWeak {
		return sig
	}
	return adjust(sig, -f.Penalty, "weak higher-timeframe trend")
}

// TrendConfirmation vetoes a signal that fights the higher-timeframe trend
// and boosts one that rides it.
type TrendConfirmation struct {
	Boost float64
}

func (TrendConfirmation) Name() string { return "trend_confirmation" }

func (f TrendConfirmation) Apply(sig *strategy.TradeSignal, ctx *Context) *strategy.TradeSignal {
	if ctx.Snapshot == nil {
		return sig
	}
	h := ctx.Snapshot.Higher
	var higherDir types.Direction
	switch {
	case h.EMAFast > h.EMASlow:
		higherDir = types.DirectionLong
	case h.EMAFast < h.EMASlow:
		higherDir = types.DirectionShort
	}
	if higherDir == types.DirectionNone {
		return sig
	}
	if higherDir == sig.Direction.Opposite() {
		return veto(sig, "opposed by higher-timeframe trend")
	}
	return adjust(sig, f.Boost, "higher-timeframe trend aligned")
}

// Choppiness penalizes elevated short-term volatility without
// accompanying trend strength: an ATR ratio spike with sub-threshold ADX
// marks conditions where entries get stopped by noise.
type Choppiness struct {
	ATRRatio   float64
	ADXCeiling float64
	Penalty    float64
}

func (Choppiness) Name() string { return "choppiness" }

func (f Choppiness) Apply(sig *strategy.TradeSignal, ctx *Context) *strategy.TradeSignal {
	if ctx.Snapshot == nil {
		return sig
	}
	p := ctx.Snapshot.Primary
	if p.ATRSMA <= 0 {
		return sig
	}
	if p.ATR/p.ATRSMA > f.ATRRatio && p.ADX < f.ADXCeiling {
		return adjust(sig, -f.Penalty, "choppy: volatility without trend")
	}
	return sig
}

// FundingCrowding penalizes entries on the crowded side of an extreme
// funding rate: strongly positive funding means longs pay shorts and the
// long side is crowded, and symmetrically for shorts.
type FundingCrowding struct {
	Threshold float64
	Penalty   float64
}

func (FundingCrowding) Name() string { return "funding_crowding" }

func (f FundingCrowding) Apply(sig *strategy.TradeSignal, ctx *Context) *strategy.TradeSignal {
	if !ctx.HasFunding {
		return sig
	}
	crowdedLong := ctx.FundingRate > f.Threshold && sig.Direction == types.DirectionLong
	crowdedShort := ctx.FundingRate < -f.Threshold && sig.Direction == types.DirectionShort
	if crowdedLong || crowdedShort {
		return adjust(sig, -f.Penalty, fmt.Sprintf("crowded side of funding %.5f", ctx.FundingRate))
	}
	return sig
}

// OrderBookPressure nudges confidence by resting-depth imbalance.
type OrderBookPressure struct {
	Threshold float64
	Delta     float64
}

func (OrderBookPressure) Name() string { return "order_book_pressure" }

func (f OrderBookPressure) Apply(sig *strategy.TradeSignal, ctx *Context) *strategy.TradeSignal {
	if !ctx.HasOrderBook {
		return sig
	}
	imb := ctx.OrderBookImbalance
	aligned := (sig.Direction == types.DirectionLong && imb > f.Threshold) ||
		(sig.Direction == types.DirectionShort && imb < -f.Threshold)
	opposed := (sig.Direction == types.DirectionLong && imb < -f.Threshold) ||
		(sig.Direction == types.DirectionShort && imb > f.Threshold)
	switch {
	case aligned:
		return adjust(sig, f.Delta, "order book depth aligned")
	case opposed:
		return adjust(sig, -f.Delta, "order book depth opposed")
	default:
		return sig
	}
}

// SentimentGate penalizes entries against strong aggregate sentiment.
type SentimentGate struct {
	Threshold float64
	Penalty   float64
}

func (SentimentGate) Name() string { return "sentiment_gate" }

func (f SentimentGate) Apply(sig *strategy.TradeSignal, ctx *Context) *strategy.TradeSignal {
	if !ctx.HasSentiment {
		return sig
	}
	opposed := (sig.Direction == types.DirectionLong && ctx.Sentiment < -f.Threshold) ||
		(sig.Direction == types.DirectionShort && ctx.Sentiment > f.Threshold)
	if opposed {
		return adjust(sig, -f.Penalty, "strong opposing sentiment")
	}
	return sig
}
