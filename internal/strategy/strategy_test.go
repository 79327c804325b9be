package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

func snapshot(v features.Vector) *features.Snapshot {
	return &features.Snapshot{
		Symbol:    "BTCUSDT",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Primary:   v,
	}
}

// TestTrendFollowing_Symmetry checks a fully confirmed long and its exact
// mirror score identically in opposite directions
func TestTrendFollowing_Symmetry(t *testing.T) {
	st := NewTrendFollowing(DefaultTrendFollowingParams())

	long := st.Evaluate(snapshot(features.Vector{
		Open: 99, High: 101, Low: 98.5, Close: 100.5, Volume: 130,
		EMAFast: 100, EMASlow: 99, EMATrend: 98,
		RSI:      60,
		MACDHist: 0.5, MACDHistPrev: 0.2,
		OBVSlope:  10,
		VolumeSMA: 100,
		ATR:       2,
	}))
	short := st.Evaluate(snapshot(features.Vector{
		Open: 101, High: 101.5, Low: 99, Close: 99.5, Volume: 130,
		EMAFast: 99, EMASlow: 100, EMATrend: 102,
		RSI:      40,
		MACDHist: -0.5, MACDHistPrev: -0.2,
		OBVSlope:  -10,
		VolumeSMA: 100,
		ATR:       2,
	}))

	assert.Equal(t, types.DirectionLong, long.Direction)
	assert.Equal(t, types.DirectionShort, short.Direction)
	assert.Equal(t, long.Confidence, short.Confidence)
	assert.InDelta(t, 1.0, long.Confidence, 1e-9)
}

// TestTrendFollowing_GateRequired yields no signal when the EMA gate
// disagrees with the trend filter
func TestTrendFollowing_GateRequired(t *testing.T) {
	st := NewTrendFollowing(DefaultTrendFollowingParams())

	sig := st.Evaluate(snapshot(features.Vector{
		Close:   100,
		EMAFast: 101, EMASlow: 100, EMATrend: 105, // fast above slow, price below trend
		ATR: 2,
	}))
	assert.Equal(t, types.DirectionNone, sig.Direction)
	assert.Zero(t, sig.Confidence)
}

// TestTrendFollowing_ExhaustedOscillatorWithholds checks the RSI band cap
func TestTrendFollowing_ExhaustedOscillatorWithholds(t *testing.T) {
	st := NewTrendFollowing(DefaultTrendFollowingParams())

	sig := st.Evaluate(snapshot(features.Vector{
		Close:   100.5,
		EMAFast: 100, EMASlow: 99, EMATrend: 98,
		RSI: 75, // overbought: no oscillator confirmation
		ATR: 2,
	}))
	assert.Equal(t, types.DirectionLong, sig.Direction)
	assert.InDelta(t, 0.35, sig.Confidence, 1e-9)
}

func TestTrendFollowing_UnusableSnapshot(t *testing.T) {
	st := NewTrendFollowing(DefaultTrendFollowingParams())

	sig := st.Evaluate(nil)
	assert.Equal(t, types.DirectionNone, sig.Direction)

	// zero ATR means the feature computation did not complete
	sig = st.Evaluate(snapshot(features.Vector{Close: 100}))
	assert.Equal(t, types.DirectionNone, sig.Direction)
}

func TestSignal_StopFromATR(t *testing.T) {
	st := NewTrendFollowing(DefaultTrendFollowingParams())

	sig := st.Evaluate(snapshot(features.Vector{
		Close:   100.5,
		EMAFast: 100, EMASlow: 99, EMATrend: 98,
		RSI: 60,
		ATR: 2,
	}))
	require.Equal(t, types.DirectionLong, sig.Direction)
	assert.InDelta(t, 3.0, sig.StopDistance, 1e-9) // 1.5 x ATR
	assert.Equal(t, 2.0, sig.RewardRisk)
	assert.Equal(t, 100.5, sig.Price)
}

// TestMeanReversion_Symmetry fades both band touches with mirrored
// confirmations
func TestMeanReversion_Symmetry(t *testing.T) {
	st := NewMeanReversion(DefaultMeanReversionParams())

	long := st.Evaluate(snapshot(features.Vector{
		Open: 94.5, High: 95.5, Low: 94, Close: 95, Volume: 120,
		BBLower: 95, BBUpper: 105, BBMiddle: 100,
		RSI:       24,
		VolumeSMA: 100,
		ATR:       2,
	}))
	short := st.Evaluate(snapshot(features.Vector{
		Open: 105.5, High: 106, Low: 104.5, Close: 105, Volume: 120,
		BBLower: 95, BBUpper: 105, BBMiddle: 100,
		RSI:       76,
		VolumeSMA: 100,
		ATR:       2,
	}))

	assert.Equal(t, types.DirectionLong, long.Direction)
	assert.Equal(t, types.DirectionShort, short.Direction)
	assert.Equal(t, long.Confidence, short.Confidence)
	assert.InDelta(t, 1.0, long.Confidence, 1e-9)
}

func TestMeanReversion_InsideBandsNoSignal(t *testing.T) {
	st := NewMeanReversion(DefaultMeanReversionParams())

	sig := st.Evaluate(snapshot(features.Vector{
		Close:   100,
		BBLower: 95, BBUpper: 105,
		ATR: 2,
	}))
	assert.Equal(t, types.DirectionNone, sig.Direction)
}

// TestBreakout_Symmetry breaks resistance and support with mirrored
// confirmations
func TestBreakout_Symmetry(t *testing.T) {
	st := NewBreakout(DefaultBreakoutParams())

	long := st.Evaluate(snapshot(features.Vector{
		Open: 104, High: 107, Low: 103.9, Close: 106.5, Volume: 160,
		Support: 95, Resistance: 105,
		RSI:       65,
		OBVSlope:  10,
		VolumeSMA: 100,
		ATR:       2,
	}))
	short := st.Evaluate(snapshot(features.Vector{
		Open: 96, High: 96.1, Low: 93, Close: 93.5, Volume: 160,
		Support: 95, Resistance: 105,
		RSI:       35,
		OBVSlope:  -10,
		VolumeSMA: 100,
		ATR:       2,
	}))

	assert.Equal(t, types.DirectionLong, long.Direction)
	assert.Equal(t, types.DirectionShort, short.Direction)
	assert.Equal(t, long.Confidence, short.Confidence)
	assert.InDelta(t, 1.0, long.Confidence, 1e-9)
}

func TestBreakout_InsideRangeNoSignal(t *testing.T) {
	st := NewBreakout(DefaultBreakoutParams())

	sig := st.Evaluate(snapshot(features.Vector{
		Close:   100,
		Support: 95, Resistance: 105,
		ATR: 2,
	}))
	assert.Equal(t, types.DirectionNone, sig.Direction)
}

func TestBodyFraction(t *testing.T) {
	assert.InDelta(t, 0.8, bodyFraction(features.Vector{Open: 100, High: 105, Low: 100, Close: 104}), 1e-9)
	assert.InDelta(t, -0.8, bodyFraction(features.Vector{Open: 104, High: 104, Low: 99, Close: 100}), 1e-9)
	assert.Zero(t, bodyFraction(features.Vector{Open: 100, High: 100, Low: 100, Close: 100}))
}

// TestSelector_RegimeMapping pins the regime-to-strategy table
func TestSelector_RegimeMapping(t *testing.T) {
	sel := NewSelector(
		NewTrendFollowing(DefaultTrendFollowingParams()),
		NewMeanReversion(DefaultMeanReversionParams()),
		NewBreakout(DefaultBreakoutParams()),
	)

	assert.Equal(t, TrendFollowingID, sel.ForRegime(regime.TrendingStrong).ID())
	assert.Equal(t, TrendFollowingID, sel.ForRegime(regime.TrendingWeak).ID())
	assert.Equal(t, BreakoutID, sel.ForRegime(regime.Volatile).ID())
	assert.Equal(t, MeanReversionID, sel.ForRegime(regime.Ranging).ID())

	assert.Equal(t, BreakoutID, sel.ByID(BreakoutID).ID())
	assert.Nil(t, sel.ByID("momentum"))
	assert.Len(t, sel.All(), 3)
}
