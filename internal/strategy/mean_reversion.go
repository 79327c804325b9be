package strategy

import (
	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

const MeanReversionID = "mean_reversion"

// MeanReversion fades extremes inside a range: a Bollinger Band touch
// gates the direction, oscillator exhaustion, candle direction and volume
// participation confirm it.
type MeanReversion struct {
	params Params
}

func DefaultMeanReversionParams() Params {
	return Params{MinConfidence: 0.72, StopATR: 1.5, RewardRisk: 2.0}
}

func NewMeanReversion(p Params) *MeanReversion {
	return &MeanReversion{params: p}
}

func (m *MeanReversion) ID() string     { return MeanReversionID }
func (m *MeanReversion) Params() Params { return m.params }

func (m *MeanReversion) Evaluate(snap *features.Snapshot) *TradeSignal {
	if !usable(snap) {
		var symbol string
		if snap != nil {
			symbol = snap.Symbol
		}
		return None(symbol, MeanReversionID, timestampOf(snap))
	}
	f := snap.Primary

	var dir types.Direction
	switch {
	case f.Close <= f.BBLower:
		dir = types.DirectionLong
	case f.Close >= f.BBUpper:
		dir = types.DirectionShort
	default:
		return None(snap.Symbol, MeanReversionID, snap.Timestamp)
	}

	var sc score
	sc.add(0.35, "price at outer bollinger band")

	if dir == types.DirectionLong {
		if f.RSI <= 30 {
			sc.add(0.25, "rsi oversold")
		}
		if f.Close > f.Open {
			sc.add(0.20, "bullish reversal candle")
		}
		if f.RSI <= 25 {
			sc.add(0.05, "rsi at extreme")
		}
	} else {
		if f.RSI >= 70 {
			sc.add(0.25, "rsi overbought")
		}
		if f.Close < f.Open {
			sc.add(0.20, "bearish reversal candle")
		}
		if f.RSI >= 75 {
			sc.add(0.05, "rsi at extreme")
		}
	}

	if f.VolumeSMA > 0 && f.Volume > f.VolumeSMA*1.1 {
		sc.add(0.15, "volume participation")
	}

	return sc.signal(snap.Symbol, MeanReversionID, snap, dir, m.params)
}
