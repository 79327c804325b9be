package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duchoang612/crypto-regime-bot/internal/adaptive"
	"github.com/duchoang612/crypto-regime-bot/internal/exchange"
	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/filter"
	"github.com/duchoang612/crypto-regime-bot/internal/lifecycle"
	"github.com/duchoang612/crypto-regime-bot/internal/portfolio"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/risk"
	"github.com/duchoang612/crypto-regime-bot/internal/strategy"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// rejectingBroker refuses every order.
type rejectingBroker struct {
	exchange.Exchange
}

func (rejectingBroker) PlaceMarketOrder(context.Context, exchange.OrderRequest) (*exchange.Fill, error) {
	return nil, errors.New("venue rejected the order")
}

func newTestEngine(t *testing.T, broker exchange.Exchange) (*Engine, *portfolio.Portfolio, *adaptive.Controller) {
	t.Helper()
	port := portfolio.New(1000, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	selector := strategy.NewSelector(
		strategy.NewTrendFollowing(strategy.DefaultTrendFollowingParams()),
		strategy.NewMeanReversion(strategy.DefaultMeanReversionParams()),
		strategy.NewBreakout(strategy.DefaultBreakoutParams()),
	)
	controller := adaptive.NewController(adaptive.DefaultConfig())
	eng := NewEngine(DefaultConfig(), Deps{
		Features:   features.NewProvider(features.DefaultConfig()),
		Classifier: regime.NewClassifier(regime.DefaultConfig()),
		Selector:   selector,
		Chain:      filter.DefaultChain(filter.DefaultConfig()),
		Validator:  risk.NewValidator(risk.DefaultConfig(), 15*time.Minute, selector, controller),
		Controller: controller,
		Lifecycle:  lifecycle.NewManager(lifecycle.DefaultConfig()),
		Portfolio:  port,
		Broker:     broker,
	})
	return eng, port, controller
}

func openLong(t *testing.T, port *portfolio.Portfolio) *portfolio.Position {
	t.Helper()
	pos := &portfolio.Position{
		Symbol:      "BTCUSDT",
		Direction:   types.DirectionLong,
		EntryPrice:  100,
		Quantity:    1,
		Leverage:    10,
		Margin:      10,
		StopPrice:   98,
		TakeProfit:  104,
		InitialRisk: 2,
		OpenedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		StrategyID:  strategy.TrendFollowingID,
	}
	require.NoError(t, port.Open(pos, 0))
	return pos
}

func shortWindow(n int, close float64, low float64) []types.Candle {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]types.Candle, n)
	for i := range out {
		out[i] = types.Candle{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      close, High: close + 1, Low: close - 1, Close: close,
			Volume: 1000,
		}
	}
	out[n-1].Low = low
	return out
}

// TestProcessBar_FailsClosedOnShortHistory runs exits but never considers
// an entry when the feature window is too short
func TestProcessBar_FailsClosedOnShortHistory(t *testing.T) {
	sim := exchange.NewSim(exchange.SimConfig{}) // no fee or slippage, exact fills
	sim.SetClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	eng, port, _ := newTestEngine(t, sim)
	openLong(t, port)

	// last bar trades through the stop at 98
	window := shortWindow(10, 100, 97)
	res, err := eng.ProcessBar(context.Background(), "BTCUSDT", window, window, MarketExtras{})
	require.NoError(t, err)

	assert.True(t, res.InsufficientData)
	assert.Nil(t, res.Signal)
	assert.Nil(t, res.Verdict)
	require.Len(t, res.Closes, 1)
	assert.Equal(t, lifecycle.ReasonStopLoss, res.Closes[0].Reason)
	assert.True(t, res.Closes[0].Full)
	assert.Zero(t, port.OpenCount())
}

func TestProcessBar_EmptyWindow(t *testing.T) {
	eng, _, _ := newTestEngine(t, exchange.NewSim(exchange.SimConfig{}))
	_, err := eng.ProcessBar(context.Background(), "BTCUSDT", nil, nil, MarketExtras{})
	assert.Error(t, err)
}

// TestProcessBar_TracksMarks records the latest close per symbol for
// mark-to-market valuation
func TestProcessBar_TracksMarks(t *testing.T) {
	eng, _, _ := newTestEngine(t, exchange.NewSim(exchange.SimConfig{}))

	window := shortWindow(10, 105, 104)
	_, err := eng.ProcessBar(context.Background(), "BTCUSDT", window, window, MarketExtras{})
	require.NoError(t, err)
	assert.Equal(t, 105.0, eng.Marks()["BTCUSDT"])
}

// TestCloseAll_FlattensEverything force-closes open positions at the last
// known mark
func TestCloseAll_FlattensEverything(t *testing.T) {
	sim := exchange.NewSim(exchange.SimConfig{})
	sim.SetClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	eng, port, _ := newTestEngine(t, sim)
	openLong(t, port)

	// establish a mark above entry
	window := shortWindow(10, 103, 102)
	_, err := eng.ProcessBar(context.Background(), "BTCUSDT", window, window, MarketExtras{})
	require.NoError(t, err)

	closes, err := eng.CloseAll(context.Background(), lifecycle.ReasonEndOfReplay, time.Now())
	require.NoError(t, err)
	require.Len(t, closes, 1)
	assert.Equal(t, lifecycle.ReasonEndOfReplay, closes[0].Reason)
	assert.Equal(t, 103.0, closes[0].Price)
	assert.InDelta(t, 3.0, closes[0].PnL, 1e-9)
	assert.Zero(t, port.OpenCount())
}

// TestProcessBar_FlagsPositionOnFailedClose keeps the position when the
// venue rejects the closing order
func TestProcessBar_FlagsPositionOnFailedClose(t *testing.T) {
	eng, port, _ := newTestEngine(t, rejectingBroker{})
	pos := openLong(t, port)

	// last bar trades through the stop but the venue refuses the close
	window := shortWindow(10, 100, 97)
	_, err := eng.ProcessBar(context.Background(), "BTCUSDT", window, window, MarketExtras{})
	require.Error(t, err)
	assert.True(t, pos.Flagged)
	assert.Equal(t, 1, port.OpenCount())
}

// TestProcessBar_StaircasePartialClose commits the stop, trail and target
// mutations only after the partial close fills
func TestProcessBar_StaircasePartialClose(t *testing.T) {
	sim := exchange.NewSim(exchange.SimConfig{})
	sim.SetClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	eng, port, _ := newTestEngine(t, sim)
	pos := openLong(t, port)

	// bar trades through the 104 target, stop untouched
	window := shortWindow(10, 104, 103.5)
	res, err := eng.ProcessBar(context.Background(), "BTCUSDT", window, window, MarketExtras{})
	require.NoError(t, err)
	require.Len(t, res.Closes, 1)
	assert.Equal(t, lifecycle.ReasonPartialTarget, res.Closes[0].Reason)
	assert.False(t, res.Closes[0].Full)

	assert.InDelta(t, 0.5, pos.Quantity, 1e-9)
	assert.True(t, pos.PartialClosed)
	assert.True(t, pos.TrailingActive)
	assert.GreaterOrEqual(t, pos.StopPrice, 100.0)
	assert.Zero(t, pos.TakeProfit)
}

// TestProcessBar_FailedPartialCloseKeepsTarget leaves the position fully
// intact for a retry when the partial close order is rejected
func TestProcessBar_FailedPartialCloseKeepsTarget(t *testing.T) {
	eng, port, _ := newTestEngine(t, rejectingBroker{})
	pos := openLong(t, port)

	window := shortWindow(10, 104, 103.5)
	_, err := eng.ProcessBar(context.Background(), "BTCUSDT", window, window, MarketExtras{})
	require.Error(t, err)

	assert.True(t, pos.Flagged)
	assert.Equal(t, 104.0, pos.TakeProfit) // still armed for the next bar
	assert.False(t, pos.PartialClosed)
	assert.False(t, pos.TrailingActive)
	assert.Equal(t, 1.0, pos.Quantity)
}

// TestReconcile_GhostCloseFeedsAdaptive records an externally filled exit
// in the strategy's rolling performance window
func TestReconcile_GhostCloseFeedsAdaptive(t *testing.T) {
	sim := exchange.NewSim(exchange.SimConfig{})
	eng, port, controller := newTestEngine(t, sim)
	openLong(t, port)

	// the simulator reports no open positions, so the tracked long is a
	// ghost and gets realized at the entry price
	err := eng.Reconcile(context.Background(), time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Zero(t, port.OpenCount())
	assert.Equal(t, 1, controller.StatsFor(strategy.TrendFollowingID).Trades)
}
