package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/strategy"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

func longSignal(confidence float64) *strategy.TradeSignal {
	return &strategy.TradeSignal{
		Symbol:     "BTCUSDT",
		Direction:  types.DirectionLong,
		Confidence: confidence,
		Price:      100,
	}
}

func alignedContext() *Context {
	return &Context{
		Snapshot: &features.Snapshot{
			Higher:  features.Vector{EMAFast: 101, EMASlow: 100},
			Primary: features.Vector{ATR: 1, ATRSMA: 1, ADX: 30},
		},
		Regime: regime.TrendingStrong,
	}
}

// TestChain_AlignedSignalBoosted runs the default chain with no optional
// feeds and an aligned higher-timeframe trend
func TestChain_AlignedSignalBoosted(t *testing.T) {
	chain := DefaultChain(DefaultConfig())

	sig := chain.Apply(longSignal(0.80), alignedContext())
	require.Equal(t, types.DirectionLong, sig.Direction)
	assert.InDelta(t, 0.85, sig.Confidence, 1e-9)
}

// TestChain_OpposedTrendVetoes kills a long against a falling higher
// timeframe and stops the chain there
func TestChain_OpposedTrendVetoes(t *testing.T) {
	chain := DefaultChain(DefaultConfig())
	ctx := alignedContext()
	ctx.Snapshot.Higher = features.Vector{EMAFast: 99, EMASlow: 100}

	sig := chain.Apply(longSignal(0.95), ctx)
	assert.Equal(t, types.DirectionNone, sig.Direction)
	assert.Zero(t, sig.Confidence)
}

// TestChain_WeakTrendPenaltyFirst applies the regime dock before the
// confirmation boost
func TestChain_WeakTrendPenaltyFirst(t *testing.T) {
	chain := DefaultChain(DefaultConfig())
	ctx := alignedContext()
	ctx.Regime = regime.TrendingWeak

	sig := chain.Apply(longSignal(0.80), ctx)
	require.Equal(t, types.DirectionLong, sig.Direction)
	// 0.80 - 0.08 weak penalty + 0.05 alignment boost
	assert.InDelta(t, 0.77, sig.Confidence, 1e-9)
}

// TestChain_ChoppinessPenalty docks volatility spikes without trend
// strength
func TestChain_ChoppinessPenalty(t *testing.T) {
	chain := DefaultChain(DefaultConfig())
	ctx := alignedContext()
	ctx.Snapshot.Primary = features.Vector{ATR: 1.5, ATRSMA: 1.0, ADX: 15}

	sig := chain.Apply(longSignal(0.80), ctx)
	require.Equal(t, types.DirectionLong, sig.Direction)
	// +0.05 alignment, -0.10 chop
	assert.InDelta(t, 0.75, sig.Confidence, 1e-9)

	// the same spike with real trend strength is not chop
	ctx.Snapshot.Primary.ADX = 30
	sig = chain.Apply(longSignal(0.80), ctx)
	assert.InDelta(t, 0.85, sig.Confidence, 1e-9)
}

// TestChain_MissingFeedsPassThrough leaves the signal untouched when the
// optional feeds are absent
func TestChain_MissingFeedsPassThrough(t *testing.T) {
	cfg := DefaultConfig()
	chain := NewChain(
		FundingCrowding{Threshold: cfg.FundingThreshold, Penalty: cfg.FundingPenalty},
		OrderBookPressure{Threshold: cfg.OrderBookThreshold, Delta: cfg.OrderBookDelta},
		SentimentGate{Threshold: cfg.SentimentThreshold, Penalty: cfg.SentimentPenalty},
	)

	sig := chain.Apply(longSignal(0.80), &Context{})
	assert.InDelta(t, 0.80, sig.Confidence, 1e-9)
}

// TestFundingCrowding_PenalizesCrowdedSideOnly docks longs under positive
// funding and leaves shorts alone
func TestFundingCrowding_PenalizesCrowdedSideOnly(t *testing.T) {
	f := FundingCrowding{Threshold: 0.0001, Penalty: 0.05}
	ctx := &Context{FundingRate: 0.0005, HasFunding: true}

	sig := f.Apply(longSignal(0.80), ctx)
	assert.InDelta(t, 0.75, sig.Confidence, 1e-9)

	short := longSignal(0.80)
	short.Direction = types.DirectionShort
	sig = f.Apply(short, ctx)
	assert.InDelta(t, 0.80, sig.Confidence, 1e-9)
}

func TestOrderBookPressure_BothSides(t *testing.T) {
	f := OrderBookPressure{Threshold: 0.2, Delta: 0.05}

	sig := f.Apply(longSignal(0.80), &Context{OrderBookImbalance: 0.5, HasOrderBook: true})
	assert.InDelta(t, 0.85, sig.Confidence, 1e-9)

	sig = f.Apply(longSignal(0.80), &Context{OrderBookImbalance: -0.5, HasOrderBook: true})
	assert.InDelta(t, 0.75, sig.Confidence, 1e-9)

	// inside the neutral band nothing changes
	sig = f.Apply(longSignal(0.80), &Context{OrderBookImbalance: 0.1, HasOrderBook: true})
	assert.InDelta(t, 0.80, sig.Confidence, 1e-9)
}

func TestSentimentGate_OpposedOnly(t *testing.T) {
	f := SentimentGate{Threshold: 0.5, Penalty: 0.05}

	sig := f.Apply(longSignal(0.80), &Context{Sentiment: -0.8, HasSentiment: true})
	assert.InDelta(t, 0.75, sig.Confidence, 1e-9)

	sig = f.Apply(longSignal(0.80), &Context{Sentiment: 0.8, HasSentiment: true})
	assert.InDelta(t, 0.80, sig.Confidence, 1e-9)
}

// TestChain_NoneSignalShortCircuits never runs filters on a non-signal
func TestChain_NoneSignalShortCircuits(t *testing.T) {
	chain := DefaultChain(DefaultConfig())

	sig := &strategy.TradeSignal{Direction: types.DirectionNone}
	out := chain.Apply(sig, alignedContext())
	assert.Equal(t, types.DirectionNone, out.Direction)
	assert.Empty(t, out.Rationale)
}

func TestAdjust_ClampsToUnitInterval(t *testing.T) {
	sig := longSignal(0.98)
	adjust(sig, 0.10, "boost")
	assert.Equal(t, 1.0, sig.Confidence)

	sig = longSignal(0.03)
	adjust(sig, -0.10, "dock")
	assert.Zero(t, sig.Confidence)
}
