package strategy

import (
	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

const TrendFollowingID = "trend_following"

// TrendFollowing trades with an established trend: EMA alignment gates the
// direction, then oscillator, momentum-histogram, volume and accumulation
// confirmations each add a bounded delta.
type TrendFollowing struct {
	params Params
}

// DefaultTrendFollowingParams carries the documented defaults. The high
// confidence floor reflects that trend entries are the most expensive to
// get wrong at leverage.
func DefaultTrendFollowingParams() Params {
	return Params{MinConfidence: 0.85, StopATR: 1.5, RewardRisk: 2.0}
}

func NewTrendFollowing(p Params) *TrendFollowing {
	return &TrendFollowing{params: p}
}

func (t *TrendFollowing) ID() string     { return TrendFollowingID }
func (t *TrendFollowing) Params() Params { return t.params }

func (t *TrendFollowing) Evaluate(snap *features.Snapshot) *TradeSignal {
	if !usable(snap) {
		var symbol string
		if snap != nil {
			symbol = snap.Symbol
		}
		return None(symbol, TrendFollowingID, timestampOf(snap))
	}
	f := snap.Primary

	var dir types.Direction
	switch {
	case f.EMAFast > f.EMASlow && f.Close > f.EMATrend:
		dir = types.DirectionLong
	case f.EMAFast < f.EMASlow && f.Close < f.EMATrend:
		dir = types.DirectionShort
	default:
		return None(snap.Symbol, TrendFollowingID, snap.Timestamp)
	}

	var sc score
	sc.add(0.35, "ema aligned with trend")

	// oscillator confirmation: with the trend but not yet exhausted
	if dir == types.DirectionLong {
		if f.RSI > 50 && f.RSI < 70 {
			sc.add(0.25, "rsi confirms without overbought")
		}
		if f.MACDHist > 0 && f.MACDHist > f.MACDHistPrev {
			sc.add(0.20, "macd histogram positive and rising")
		}
		if f.OBVSlope > 0 {
			sc.add(0.05, "obv accumulating")
		}
	} else {
		if f.RSI < 50 && f.RSI > 30 {
			sc.add(0.25, "rsi confirms without oversold")
		}
		if f.MACDHist < 0 && f.MACDHist < f.MACDHistPrev {
			sc.add(0.20, "macd histogram negative and falling")
		}
		if f.OBVSlope < 0 {
			sc.add(0.05, "obv distributing")
		}
	}

	if f.VolumeSMA > 0 && f.Volume > f.VolumeSMA*1.2 {
		sc.add(0.15, "volume above average")
	}

	return sc.signal(snap.Symbol, TrendFollowingID, snap, dir, t.params)
}
