package portfolio

import (
	"time"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// Position is one open futures position. While open it is owned
// exclusively by the lifecycle manager: only the manager mutates stops,
// targets and trailing state, which is what removes the need for
// per-position locking.
type Position struct {
	Symbol    string          `json:"symbol"`
	Direction types.Direction `json:"direction"`

	EntryPrice float64 `json:"entry_price"`
	Quantity   float64 `json:"quantity"`
	Leverage   float64 `json:"leverage"`
	Margin     float64 `json:"margin"`

	StopPrice  float64 `json:"stop_price"`
	TakeProfit float64 `json:"take_profit"`
	// InitialRisk is |entry - stop| at open; breakeven and trailing
	// distances are expressed in multiples of it.
	InitialRisk float64 `json:"initial_risk"`

	OpenedAt          time.Time `json:"opened_at"`
	StrategyID        string    `json:"strategy_id"`
	ConfidenceAtEntry float64   `json:"confidence_at_entry"`

	BreakevenSet   bool `json:"breakeven_set"`
	TrailingActive bool `json:"trailing_active"`
	// BestPrice is the most favorable price seen since trailing was
	// armed; the trailing stop hangs a fixed distance behind it.
	BestPrice     float64 `json:"best_price"`
	PartialClosed bool    `json:"partial_closed"`

	// Flagged marks a position whose close attempt failed; it stays
	// tracked until reconciliation or a successful retry.
	Flagged bool `json:"flagged"`

	// Recovered marks a position adopted from the exchange at startup
	// rather than opened by this process.
	Recovered bool `json:"recovered"`
}

// UnrealizedPnL is the mark-to-market profit at the given price,
// excluding fees.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity * p.Direction.Sign()
}

// RMultiple expresses current profit at the given price in multiples of
// the initial risk.
func (p *Position) RMultiple(price float64) float64 {
	if p.InitialRisk <= 0 {
		return 0
	}
	return (price - p.EntryPrice) * p.Direction.Sign() / p.InitialRisk
}

// StopHit reports whether the bar's adverse extreme crossed the stop.
func (p *Position) StopHit(low, high float64) bool {
	if p.StopPrice <= 0 {
		return false
	}
	if p.Direction == types.DirectionLong {
		return low <= p.StopPrice
	}
	return high >= p.StopPrice
}

// TargetHit reports whether the bar's favorable extreme reached the
// take-profit level.
func (p *Position) TargetHit(low, high float64) bool {
	if p.TakeProfit <= 0 {
		return false
	}
	if p.Direction == types.DirectionLong {
		return high >= p.TakeProfit
	}
	return low <= p.TakeProfit
}
