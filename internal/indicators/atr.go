package indicators

import (
	"math"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// TrueRanges returns the true range of every candle after the first.
func TrueRanges(candles []types.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		out[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATRSeries returns the Wilder-smoothed average true range at every bar
// after the warmup window.
func ATRSeries(candles []types.Candle, period int) ([]float64, error) {
	if err := validate(len(candles), period+1); err != nil {
		return nil, err
	}
	tr := TrueRanges(candles)

	out := make([]float64, len(tr)-period+1)
	seed := 0.0
	for _, v := range tr[:period] {
		seed += v
	}
	out[0] = seed / float64(period)
	for i := period; i < len(tr); i++ {
		out[i-period+1] = (out[i-period]*float64(period-1) + tr[i]) / float64(period)
	}
	return out, nil
}

// ATR returns the latest average true range value.
func ATR(candles []types.Candle, period int) (float64, error) {
	series, err := ATRSeries(candles, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
