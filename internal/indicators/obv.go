package indicators

import "github.com/duchoang612/crypto-regime-bot/pkg/types"

// OBVSeries returns the cumulative on-balance volume at every bar,
// starting from zero at the first candle.
func OBVSeries(candles []types.Candle) ([]float64, error) {
	if len(candles) < 2 {
		return nil, ErrInsufficientData
	}
	out := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] = out[i-1] + candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			out[i] = out[i-1] - candles[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out, nil
}
