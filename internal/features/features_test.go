package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duchoang612/crypto-regime-bot/internal/indicators"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

func waveCandles(n int) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		p := 100 + 5*math.Sin(float64(i)/8)
		out[i] = types.Candle{
			Open:   p,
			High:   p + 1,
			Low:    p - 1,
			Close:  p + 0.3,
			Volume: 1000,
		}
	}
	return out
}

func TestConfig_MinBars(t *testing.T) {
	assert.Equal(t, 51, DefaultConfig().MinBars()) // trend EMA dominates the defaults

	cfg := DefaultConfig()
	cfg.MACDSlow = 60
	assert.Equal(t, 70, cfg.MinBars()) // MACD slow+signal takes over
}

func TestCompute_ShortWindow(t *testing.T) {
	p := NewProvider(DefaultConfig())
	_, err := p.Compute(waveCandles(DefaultConfig().MinBars() - 1))
	assert.ErrorIs(t, err, indicators.ErrInsufficientData)
}

// TestCompute_Deterministic verifies identical windows produce identical
// vectors
func TestCompute_Deterministic(t *testing.T) {
	p := NewProvider(DefaultConfig())
	candles := waveCandles(120)

	a, err := p.Compute(candles)
	require.NoError(t, err)
	b, err := p.Compute(candles)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompute_PopulatesVector(t *testing.T) {
	p := NewProvider(DefaultConfig())
	candles := waveCandles(120)

	v, err := p.Compute(candles)
	require.NoError(t, err)

	last := candles[len(candles)-1]
	assert.Equal(t, last.Close, v.Close)
	assert.Equal(t, candles[len(candles)-2].Close, v.PrevClose)
	assert.Greater(t, v.ATR, 0.0)
	assert.Greater(t, v.ATRSMA, 0.0)
	assert.Greater(t, v.BBUpper, v.BBMiddle)
	assert.Greater(t, v.BBMiddle, v.BBLower)
	assert.Greater(t, v.Resistance, v.Support)
	assert.Equal(t, 1000.0, v.VolumeSMA)
	assert.GreaterOrEqual(t, v.RSI, 0.0)
	assert.LessOrEqual(t, v.RSI, 100.0)
}

func TestSnapshot_WrapsBothTimeframes(t *testing.T) {
	p := NewProvider(DefaultConfig())
	primary := waveCandles(120)
	higher := waveCandles(60)

	snap, err := p.Snapshot("BTCUSDT", primary, higher)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, primary[len(primary)-1].Close, snap.Primary.Close)
	assert.Equal(t, higher[len(higher)-1].Close, snap.Higher.Close)

	_, err = p.Snapshot("BTCUSDT", primary, waveCandles(10))
	assert.ErrorIs(t, err, indicators.ErrInsufficientData)
}
