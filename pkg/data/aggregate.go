package data

import "github.com/duchoang612/crypto-regime-bot/pkg/types"

// Aggregate compacts consecutive groups of n primary candles into one
// higher-timeframe candle, stamped with the group's first timestamp. A
// trailing partial group is dropped so every output candle is closed.
// Replay derives its confirmation timeframe this way so a single input
// series drives both timeframes deterministically.
func Aggregate(candles []types.Candle, n int) []types.Candle {
	if n <= 1 {
		return candles
	}
	out := make([]types.Candle, 0, len(candles)/n)
	for i := 0; i+n <= len(candles); i += n {
		group := candles[i : i+n]
		agg := types.Candle{
			Timestamp: group[0].Timestamp,
			Open:      group[0].Open,
			High:      group[0].High,
			Low:       group[0].Low,
			Close:     group[n-1].Close,
		}
		for _, c := range group {
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Volume += c.Volume
		}
		out = append(out, agg)
	}
	return out
}

// AggregateTrailing is Aggregate anchored to the end of the series: the
// most recent n candles form the last group, so the newest higher-
// timeframe candle always reflects the latest primary bars. Used when
// the window advances bar by bar.
func AggregateTrailing(candles []types.Candle, n int) []types.Candle {
	if n <= 1 {
		return candles
	}
	offset := len(candles) % n
	return Aggregate(candles[offset:], n)
}
