package types

import "time"

// Candle is a closed OHLCV bar. Candles are immutable once closed and are
// always handled as an ordered slice per (symbol, timeframe).
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Direction of a trade signal or an open position.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionLong
	DirectionShort
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "LONG"
	case DirectionShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Sign returns +1 for long, -1 for short and 0 otherwise. P&L math uses it
// so long and short paths share one formula.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

// Opposite returns the mirrored direction (NONE maps to NONE).
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionNone
	}
}

// Ticker is a point-in-time price observation.
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Balance is a single-asset account balance as reported by an exchange.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}
