package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

func open(t *testing.T, p *Portfolio, symbol string, dir types.Direction, entry, qty, margin float64) {
	t.Helper()
	err := p.Open(&Position{
		Symbol:     symbol,
		Direction:  dir,
		EntryPrice: entry,
		Quantity:   qty,
		Margin:     margin,
		StopPrice:  entry - 2*dir.Sign(),
	}, 1.0)
	require.NoError(t, err)
}

// TestPortfolio_OpenDebitsMarginAndFee verifies the free balance drops by
// margin plus entry fee
func TestPortfolio_OpenDebitsMarginAndFee(t *testing.T) {
	p := New(1000, time.Now())
	open(t, p, "BTCUSDT", types.DirectionLong, 100, 1, 50)

	assert.Equal(t, 949.0, p.FreeBalance())
	assert.Equal(t, 1.0, p.FeesPaid())
	assert.Equal(t, 1, p.OpenCount())
}

func TestPortfolio_OpenRejectsDuplicateSymbol(t *testing.T) {
	p := New(1000, time.Now())
	open(t, p, "BTCUSDT", types.DirectionLong, 100, 1, 50)

	err := p.Open(&Position{Symbol: "BTCUSDT", Margin: 50}, 1.0)
	assert.Error(t, err)
}

func TestPortfolio_OpenRejectsInsufficientBalance(t *testing.T) {
	p := New(10, time.Now())
	err := p.Open(&Position{Symbol: "BTCUSDT", Margin: 50}, 1.0)
	assert.Error(t, err)
}

// TestPortfolio_CloseRealizesPnL closes a long at a profit and checks
// balance, realized P&L and position removal
func TestPortfolio_CloseRealizesPnL(t *testing.T) {
	p := New(1000, time.Now())
	open(t, p, "BTCUSDT", types.DirectionLong, 100, 1, 50)

	pnl, err := p.Close("BTCUSDT", 1, 110, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, pnl, 1e-9) // 10 gross minus exit fee

	// 1000 - margin - entry fee + margin + pnl
	assert.InDelta(t, 1008.0, p.FreeBalance(), 1e-9)
	assert.InDelta(t, 9.0, p.RealizedPnL(), 1e-9)
	assert.Equal(t, 2.0, p.FeesPaid())
	assert.Zero(t, p.OpenCount())
}

// TestPortfolio_PartialCloseReleasesFractionalMargin closes half and
// checks proportional margin release
func TestPortfolio_PartialCloseReleasesFractionalMargin(t *testing.T) {
	p := New(1000, time.Now())
	open(t, p, "BTCUSDT", types.DirectionLong, 100, 2, 50)

	pnl, err := p.Close("BTCUSDT", 1, 110, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, pnl, 1e-9)

	pos := p.Position("BTCUSDT")
	require.NotNil(t, pos)
	assert.InDelta(t, 1.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 25.0, pos.Margin, 1e-9)
}

// TestPortfolio_ShortClosePnL checks the sign convention on the short side
func TestPortfolio_ShortClosePnL(t *testing.T) {
	p := New(1000, time.Now())
	open(t, p, "BTCUSDT", types.DirectionShort, 100, 1, 50)

	pnl, err := p.Close("BTCUSDT", 1, 90, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, pnl, 1e-9)
}

func TestPortfolio_CloseValidatesQuantity(t *testing.T) {
	p := New(1000, time.Now())
	open(t, p, "BTCUSDT", types.DirectionLong, 100, 1, 50)

	_, err := p.Close("BTCUSDT", 2, 110, 0)
	assert.Error(t, err)
	_, err = p.Close("BTCUSDT", 0, 110, 0)
	assert.Error(t, err)
	_, err = p.Close("ETHUSDT", 1, 110, 0)
	assert.Error(t, err)
}

// TestPortfolio_TotalValueAndPeak marks positions and tracks the peak
// monotonically
func TestPortfolio_TotalValueAndPeak(t *testing.T) {
	p := New(1000, time.Now())
	open(t, p, "BTCUSDT", types.DirectionLong, 100, 1, 50)

	v := p.TotalValue(map[string]float64{"BTCUSDT": 120})
	assert.InDelta(t, 1019.0, v, 1e-9) // 949 free + 50 margin + 20 unrealized
	assert.InDelta(t, 1019.0, p.PeakValue(), 1e-9)

	// value falling does not lower the peak
	v = p.TotalValue(map[string]float64{"BTCUSDT": 100})
	assert.InDelta(t, 999.0, v, 1e-9)
	assert.InDelta(t, 1019.0, p.PeakValue(), 1e-9)
	assert.InDelta(t, 20.0/1019.0, p.Drawdown(v), 1e-9)
}

// TestPortfolio_DailyRollover re-anchors the baseline only on a new UTC
// date
func TestPortfolio_DailyRollover(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := New(1000, start)

	assert.False(t, p.ResetDailyIfNeeded(start.Add(2*time.Hour), 1050))
	assert.InDelta(t, 0.05, p.DailyPnLPct(1050), 1e-9)

	require.True(t, p.ResetDailyIfNeeded(start.Add(15*time.Hour), 1050))
	assert.InDelta(t, 0.0, p.DailyPnLPct(1050), 1e-9)
	assert.InDelta(t, -0.02, p.DailyPnLPct(1029), 1e-9)
}

func TestPortfolio_AdoptAndRemove(t *testing.T) {
	p := New(1000, time.Now())
	p.Adopt(&Position{Symbol: "ETHUSDT", Quantity: 1, EntryPrice: 2000})

	pos := p.Position("ETHUSDT")
	require.NotNil(t, pos)
	assert.True(t, pos.Recovered)
	assert.Equal(t, 1000.0, p.FreeBalance()) // no balance movement

	p.Remove("ETHUSDT")
	assert.Zero(t, p.OpenCount())
}

func TestPosition_RMultipleAndHits(t *testing.T) {
	pos := &Position{
		Direction:   types.DirectionLong,
		EntryPrice:  100,
		StopPrice:   98,
		TakeProfit:  104,
		InitialRisk: 2,
	}
	assert.InDelta(t, 1.0, pos.RMultiple(102), 1e-9)
	assert.True(t, pos.StopHit(97.9, 99))
	assert.False(t, pos.StopHit(98.1, 99))
	assert.True(t, pos.TargetHit(103, 104.2))
	assert.False(t, pos.TargetHit(103, 103.9))
}
