package indicators

import "github.com/duchoang612/crypto-regime-bot/pkg/types"

// Levels carries the nearest support and resistance derived from a
// trailing lookback window.
type Levels struct {
	Support    float64
	Resistance float64
}

// SupportResistance returns the lowest low and highest high over the
// lookback window ending at the previous candle. The current candle is
// excluded so a breakout of the level can be detected on the live bar.
func SupportResistance(candles []types.Candle, lookback int) (Levels, error) {
	if err := validate(len(candles), lookback+1); err != nil {
		return Levels{}, err
	}
	window := candles[len(candles)-lookback-1 : len(candles)-1]
	lv := Levels{Support: window[0].Low, Resistance: window[0].High}
	for _, c := range window[1:] {
		if c.Low < lv.Support {
			lv.Support = c.Low
		}
		if c.High > lv.Resistance {
			lv.Resistance = c.High
		}
	}
	return lv, nil
}
