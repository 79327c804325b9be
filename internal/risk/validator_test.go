package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duchoang612/crypto-regime-bot/internal/adaptive"
	"github.com/duchoang612/crypto-regime-bot/internal/portfolio"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/strategy"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

var anchor = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSelector() *strategy.Selector {
	return strategy.NewSelector(
		strategy.NewTrendFollowing(strategy.DefaultTrendFollowingParams()),
		strategy.NewMeanReversion(strategy.DefaultMeanReversionParams()),
		strategy.NewBreakout(strategy.DefaultBreakoutParams()),
	)
}

func newValidator(cfg Config) *Validator {
	return NewValidator(cfg, 15*time.Minute, newSelector(), adaptive.NewController(adaptive.DefaultConfig()))
}

func signal() *strategy.TradeSignal {
	return &strategy.TradeSignal{
		Symbol:       "BTCUSDT",
		Timestamp:    anchor,
		Direction:    types.DirectionLong,
		Confidence:   0.90,
		Price:        100,
		StopDistance: 2,
		RewardRisk:   2.0,
		StrategyID:   strategy.MeanReversionID,
	}
}

// TestValidate_AcceptsAndSizes runs the happy path and checks the sizing
// chain output
func TestValidate_AcceptsAndSizes(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	require.True(t, verdict.Accepted)
	assert.Empty(t, verdict.Reason)
	assert.Equal(t, 15.0, verdict.Size.Leverage)
	assert.Greater(t, verdict.Size.Quantity, 0.0)
	assert.Greater(t, verdict.Size.Notional, DefaultConfig().MinNotional)
	assert.InDelta(t, verdict.Size.Notional/verdict.Size.Leverage, verdict.Size.Margin, 1e-9)
	assert.False(t, verdict.Size.StopWidened)
}

// TestValidate_ConfidenceFloor rejects below the strategy minimum and
// names confidence as the first failing check
func TestValidate_ConfidenceFloor(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	sig := signal()
	sig.Confidence = 0.50
	sig.RewardRisk = 1.0 // would also fail, but confidence is checked first

	verdict := v.Validate(sig, port, 1000, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonLowConfidence, verdict.Reason)
}

// TestValidate_StopWidenedToNoiseFloor widens a too-tight stop in place
// instead of rejecting
func TestValidate_StopWidenedToNoiseFloor(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	sig := signal()
	sig.StopDistance = 0.5 // floor at price 100 is 1.5

	verdict := v.Validate(sig, port, 1000, regime.Ranging, anchor)
	require.True(t, verdict.Accepted)
	assert.True(t, verdict.Size.StopWidened)
	assert.InDelta(t, 1.5, sig.StopDistance, 1e-9)
}

func TestValidate_RewardRiskFloor(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	sig := signal()
	sig.RewardRisk = 1.5

	verdict := v.Validate(sig, port, 1000, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonRewardRisk, verdict.Reason)

	// the epsilon tolerates float drift just under the minimum
	sig = signal()
	sig.RewardRisk = 1.995
	verdict = v.Validate(sig, port, 1000, regime.Ranging, anchor)
	assert.True(t, verdict.Accepted)
}

// TestValidate_DailyLossBreaker halts entries once the daily loss limit
// is reached
func TestValidate_DailyLossBreaker(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	verdict := v.Validate(signal(), port, 870, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonDailyLossLimit, verdict.Reason)
}

// TestValidate_DailyLossBreakerLatches keeps rejecting for the rest of
// the UTC day even after marks recover above the limit
func TestValidate_DailyLossBreakerLatches(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	verdict := v.Validate(signal(), port, 880, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonDailyLossLimit, verdict.Reason)

	// intra-day recovery: the instantaneous loss is back inside the
	// limit, but the halt holds
	verdict = v.Validate(signal(), port, 980, regime.Ranging, anchor.Add(2*time.Hour))
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonDailyLossLimit, verdict.Reason)

	// the next UTC day the baseline rolls over and the halt clears
	nextDay := anchor.Add(24 * time.Hour)
	port.ResetDailyIfNeeded(nextDay, 980)
	verdict = v.Validate(signal(), port, 980, regime.Ranging, nextDay)
	assert.True(t, verdict.Accepted)

	// Reset (between replay folds) also clears the latch
	v.Validate(signal(), port, 860, regime.Ranging, nextDay)
	v.Reset()
	verdict = v.Validate(signal(), port, 980, regime.Ranging, nextDay)
	assert.True(t, verdict.Accepted)
}

// TestValidate_DrawdownBreaker halts entries at the drawdown limit even
// when the daily baseline has rolled over
func TestValidate_DrawdownBreaker(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)
	port.TotalValue(nil) // peak at 1000

	// next day the baseline re-anchors at the drawn-down value, so the
	// daily breaker stays quiet and the drawdown breaker fires
	nextDay := anchor.Add(24 * time.Hour)
	port.ResetDailyIfNeeded(nextDay, 600)

	verdict := v.Validate(signal(), port, 600, regime.Ranging, nextDay)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonMaxDrawdown, verdict.Reason)
}

func openPosition(t *testing.T, port *portfolio.Portfolio, symbol string, dir types.Direction) {
	t.Helper()
	require.NoError(t, port.Open(&portfolio.Position{
		Symbol:     symbol,
		Direction:  dir,
		EntryPrice: 100,
		Quantity:   1,
		Margin:     10,
	}, 0))
}

func TestValidate_MaxPositions(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)
	openPosition(t, port, "ETHUSDT", types.DirectionLong)
	openPosition(t, port, "SOLUSDT", types.DirectionShort)
	openPosition(t, port, "XRPUSDT", types.DirectionShort)

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonMaxPositions, verdict.Reason)
}

func TestValidate_SymbolAlreadyOpen(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)
	openPosition(t, port, "BTCUSDT", types.DirectionShort)

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonSymbolOpen, verdict.Reason)
}

func TestValidate_DirectionCap(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)
	openPosition(t, port, "ETHUSDT", types.DirectionLong)

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonDirectionCap, verdict.Reason)

	// the short side is unaffected
	sig := signal()
	sig.Direction = types.DirectionShort
	verdict = v.Validate(sig, port, 1000, regime.Ranging, anchor)
	assert.True(t, verdict.Accepted)
}

// TestValidate_CooldownAfterLoss blocks re-entry for the cooldown window
// and doubles it after consecutive losses
func TestValidate_CooldownAfterLoss(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	// one stop-out: 5 bars of 15m = 75 minutes
	v.RecordClose("BTCUSDT", false, true, anchor)
	assert.Equal(t, 1, v.ConsecutiveLosses("BTCUSDT"))

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor.Add(50*time.Minute))
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonCooldown, verdict.Reason)

	verdict = v.Validate(signal(), port, 1000, regime.Ranging, anchor.Add(80*time.Minute))
	assert.True(t, verdict.Accepted)

	// a second consecutive stop-out doubles the window to 150 minutes
	v.RecordClose("BTCUSDT", false, true, anchor)
	assert.Equal(t, 2, v.ConsecutiveLosses("BTCUSDT"))

	verdict = v.Validate(signal(), port, 1000, regime.Ranging, anchor.Add(100*time.Minute))
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonCooldown, verdict.Reason)

	// a win clears the losing run
	v.RecordClose("BTCUSDT", true, false, anchor)
	assert.Zero(t, v.ConsecutiveLosses("BTCUSDT"))
}

// TestRecordClose_OnlyStopOutsStartCooldown leaves the cooldown alone for
// losing exits that were not stop fills
func TestRecordClose_OnlyStopOutsStartCooldown(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	// a losing momentum-decay or end-of-replay close is not a stop-out
	v.RecordClose("BTCUSDT", false, false, anchor)
	assert.Zero(t, v.ConsecutiveLosses("BTCUSDT"))

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor.Add(time.Minute))
	assert.True(t, verdict.Accepted)
}

func TestValidate_HourlyCap(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	v.RecordEntry(anchor.Add(-30 * time.Minute))
	v.RecordEntry(anchor.Add(-10 * time.Minute))
	v.BeginTick()

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonHourlyCap, verdict.Reason)
}

func TestValidate_DailyCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTradesPerHour = 20
	cfg.MaxTradesPerDay = 20
	v := newValidator(cfg)
	port := portfolio.New(1000, anchor)

	for i := 0; i < 20; i++ {
		v.RecordEntry(anchor.Add(-time.Duration(i+2) * time.Hour))
	}
	v.BeginTick()

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonDailyCap, verdict.Reason)
}

// TestValidate_ClusterCap limits entries per evaluation pass and resets
// with BeginTick
func TestValidate_ClusterCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTradesPerHour = 10
	cfg.MaxTradesPerDay = 20
	v := newValidator(cfg)
	port := portfolio.New(1000, anchor)

	v.BeginTick()
	v.RecordEntry(anchor)
	v.RecordEntry(anchor)

	verdict := v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonClusterCap, verdict.Reason)

	v.BeginTick()
	verdict = v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	assert.True(t, verdict.Accepted)
}

func TestValidate_MinNotional(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1, anchor)

	verdict := v.Validate(signal(), port, 1, regime.Ranging, anchor)
	require.False(t, verdict.Accepted)
	assert.Equal(t, ReasonMinNotional, verdict.Reason)
}

// TestValidate_VolatileRegimeScalesDown compares accepted sizes across
// regimes
func TestValidate_VolatileRegimeScalesDown(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	base := v.Validate(signal(), port, 1000, regime.Ranging, anchor)
	require.True(t, base.Accepted)

	vol := v.Validate(signal(), port, 1000, regime.Volatile, anchor)
	require.True(t, vol.Accepted)

	assert.InDelta(t, 0.67, vol.Size.Quantity/base.Size.Quantity, 1e-9)
}

// TestValidate_RiskCapClampsQuantity bounds the worst-case loss at the
// stop by the per-trade budget
func TestValidate_RiskCapClampsQuantity(t *testing.T) {
	v := newValidator(DefaultConfig())
	port := portfolio.New(1000, anchor)

	sig := signal()
	sig.StopDistance = 10

	verdict := v.Validate(sig, port, 1000, regime.Ranging, anchor)
	require.True(t, verdict.Accepted)
	// 1000 * 2.5% risk budget / 10 stop distance
	assert.InDelta(t, 2.5, verdict.Size.Quantity, 1e-9)
}

func TestConfidenceScale_Interpolation(t *testing.T) {
	v := newValidator(DefaultConfig())

	assert.InDelta(t, 0.60, v.confidenceScale(0.72, 0.72), 1e-9)
	assert.InDelta(t, 1.0, v.confidenceScale(1.0, 0.72), 1e-9)
	mid := v.confidenceScale(0.86, 0.72)
	assert.Greater(t, mid, 0.60)
	assert.Less(t, mid, 1.0)
}

func TestDrawdownScale_Taper(t *testing.T) {
	v := newValidator(DefaultConfig())

	assert.Equal(t, 1.0, v.drawdownScale(0.05))
	assert.InDelta(t, 0.625, v.drawdownScale(0.15), 1e-9)
	assert.Equal(t, 0.25, v.drawdownScale(0.25))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.BaseFraction = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxSameDirection = bad.MaxPositions + 1
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxDrawdownPct = bad.DailyLossLimitPct
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxTradesPerDay = 1 // below hourly cap
	assert.Error(t, bad.Validate())
}
