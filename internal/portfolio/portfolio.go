// Package portfolio tracks account value, open positions and the running
// aggregates (peak value, daily P&L) the risk validator reads. It is
// mutated only by the evaluation loop; there is no internal locking.
package portfolio

import (
	"fmt"
	"sort"
	"time"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// Portfolio is the account state shared by live and replay modes.
type Portfolio struct {
	balance   float64 // free balance, margin excluded
	positions map[string]*Position

	initialValue float64
	peakValue    float64

	dailyStartValue float64
	dailyDate       time.Time

	realizedPnL float64
	feesPaid    float64
}

// New returns a portfolio seeded with the starting balance.
func New(startBalance float64, now time.Time) *Portfolio {
	return &Portfolio{
		balance:         startBalance,
		positions:       make(map[string]*Position),
		initialValue:    startBalance,
		peakValue:       startBalance,
		dailyStartValue: startBalance,
		dailyDate:       now.UTC().Truncate(24 * time.Hour),
	}
}

// FreeBalance is the balance not locked as margin.
func (p *Portfolio) FreeBalance() float64 { return p.balance }

// RealizedPnL is the cumulative realized profit net of fees.
func (p *Portfolio) RealizedPnL() float64 { return p.realizedPnL }

// FeesPaid is the cumulative fee spend.
func (p *Portfolio) FeesPaid() float64 { return p.feesPaid }

// InitialValue is the starting balance.
func (p *Portfolio) InitialValue() float64 { return p.initialValue }

// PeakValue is the highest total value observed; monotonically
// non-decreasing, it drives the drawdown calculation.
func (p *Portfolio) PeakValue() float64 { return p.peakValue }

// Position returns the open position for the symbol, or nil.
func (p *Portfolio) Position(symbol string) *Position {
	return p.positions[symbol]
}

// Positions returns the open positions in deterministic symbol order.
func (p *Portfolio) Positions() []*Position {
	symbols := make([]string, 0, len(p.positions))
	for s := range p.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	out := make([]*Position, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, p.positions[s])
	}
	return out
}

// OpenCount is the number of open positions.
func (p *Portfolio) OpenCount() int { return len(p.positions) }

// DirectionCount is the number of open positions sharing the direction.
func (p *Portfolio) DirectionCount(d types.Direction) int {
	n := 0
	for _, pos := range p.positions {
		if pos.Direction == d {
			n++
		}
	}
	return n
}

// TotalValue marks every open position at the supplied price, falling
// back to entry price for symbols with no mark, and updates the peak.
func (p *Portfolio) TotalValue(marks map[string]float64) float64 {
	v := p.balance
	for sym, pos := range p.positions {
		v += pos.Margin
		price, ok := marks[sym]
		if !ok {
			price = pos.EntryPrice
		}
		v += pos.UnrealizedPnL(price)
	}
	if v > p.peakValue {
		p.peakValue = v
	}
	return v
}

// Drawdown is the fractional decline of the given value from the peak.
func (p *Portfolio) Drawdown(value float64) float64 {
	if p.peakValue <= 0 {
		return 0
	}
	dd := (p.peakValue - value) / p.peakValue
	if dd < 0 {
		return 0
	}
	return dd
}

// DailyPnLPct is the fractional change of the given value since the
// daily reset.
func (p *Portfolio) DailyPnLPct(value float64) float64 {
	if p.dailyStartValue <= 0 {
		return 0
	}
	return (value - p.dailyStartValue) / p.dailyStartValue
}

// ResetDailyIfNeeded re-anchors the daily P&L baseline when the UTC date
// rolls over. Returns true on a rollover.
func (p *Portfolio) ResetDailyIfNeeded(now time.Time, value float64) bool {
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.After(p.dailyDate) {
		return false
	}
	p.dailyDate = day
	p.dailyStartValue = value
	return true
}

// Open registers a new position, locking its margin and paying the entry
// fee out of the free balance.
func (p *Portfolio) Open(pos *Position, entryFee float64) error {
	if _, exists := p.positions[pos.Symbol]; exists {
		return fmt.Errorf("portfolio: position already open for %s", pos.Symbol)
	}
	cost := pos.Margin + entryFee
	if cost > p.balance {
		return fmt.Errorf("portfolio: insufficient balance %.2f for margin %.2f + fee %.2f",
			p.balance, pos.Margin, entryFee)
	}
	p.balance -= cost
	p.feesPaid += entryFee
	p.positions[pos.Symbol] = pos
	return nil
}

// Adopt registers a position recovered from the exchange without touching
// the balance; its margin is assumed already held there.
func (p *Portfolio) Adopt(pos *Position) {
	pos.Recovered = true
	p.positions[pos.Symbol] = pos
}

// Close realizes quantity of the position at the given price, releasing
// the proportional margin and paying the exit fee. The position is
// removed when fully closed. Returns the realized P&L net of the exit fee.
func (p *Portfolio) Close(symbol string, quantity, price, exitFee float64) (float64, error) {
	pos, ok := p.positions[symbol]
	if !ok {
		return 0, fmt.Errorf("portfolio: no open position for %s", symbol)
	}
	if quantity <= 0 || quantity > pos.Quantity+1e-9 {
		return 0, fmt.Errorf("portfolio: close quantity %.8f invalid for %s (open %.8f)",
			quantity, symbol, pos.Quantity)
	}

	fraction := quantity / pos.Quantity
	releasedMargin := pos.Margin * fraction
	pnl := (price-pos.EntryPrice)*quantity*pos.Direction.Sign() - exitFee

	p.balance += releasedMargin + pnl
	p.realizedPnL += pnl
	p.feesPaid += exitFee

	pos.Quantity -= quantity
	pos.Margin -= releasedMargin
	if pos.Quantity <= 1e-9 {
		delete(p.positions, symbol)
	}
	return pnl, nil
}

// Remove drops a position without any balance movement. Reconciliation
// uses it when the exchange shows the position no longer exists.
func (p *Portfolio) Remove(symbol string) {
	delete(p.positions, symbol)
}
