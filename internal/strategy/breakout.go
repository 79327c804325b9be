package strategy

import (
	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

const BreakoutID = "breakout"

// Breakout trades range expansion in volatile conditions: a close beyond
// the recent support/resistance level gates the direction, with volume
// expansion, candle body conviction and momentum confirmation stacked on
// top.
type Breakout struct {
	params Params
}

func DefaultBreakoutParams() Params {
	return Params{MinConfidence: 0.70, StopATR: 1.5, RewardRisk: 2.0}
}

func NewBreakout(p Params) *Breakout {
	return &Breakout{params: p}
}

func (b *Breakout) ID() string     { return BreakoutID }
func (b *Breakout) Params() Params { return b.params }

func (b *Breakout) Evaluate(snap *features.Snapshot) *TradeSignal {
	if !usable(snap) {
		var symbol string
		if snap != nil {
			symbol = snap.Symbol
		}
		return None(symbol, BreakoutID, timestampOf(snap))
	}
	f := snap.Primary

	var dir types.Direction
	switch {
	case f.Resistance > 0 && f.Close > f.Resistance:
		dir = types.DirectionLong
	case f.Support > 0 && f.Close < f.Support:
		dir = types.DirectionShort
	default:
		return None(snap.Symbol, BreakoutID, snap.Timestamp)
	}

	var sc score
	sc.add(0.35, "close beyond range boundary")

	if f.VolumeSMA > 0 && f.Volume > f.VolumeSMA*1.5 {
		sc.add(0.25, "breakout volume expansion")
	}

	// conviction: the bar closed near its extreme in the break direction
	if body := bodyFraction(f); dir == types.DirectionLong && body > 0.6 {
		sc.add(0.20, "strong bullish body")
	} else if dir == types.DirectionShort && body < -0.6 {
		sc.add(0.20, "strong bearish body")
	}

	if dir == types.DirectionLong {
		if f.RSI > 55 && f.RSI < 80 {
			sc.add(0.15, "momentum behind the break")
		}
		if f.OBVSlope > 0 {
			sc.add(0.05, "obv confirms")
		}
	} else {
		if f.RSI < 45 && f.RSI > 20 {
			sc.add(0.15, "momentum behind the break")
		}
		if f.OBVSlope < 0 {
			sc.add(0.05, "obv confirms")
		}
	}

	return sc.signal(snap.Symbol, BreakoutID, snap, dir, b.params)
}

// bodyFraction is the signed candle body as a fraction of its full range.
func bodyFraction(f features.Vector) float64 {
	r := f.High - f.Low
	if r <= 0 {
		return 0
	}
	return (f.Close - f.Open) / r
}
