package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/adaptive"
	"github.com/duchoang612/crypto-regime-bot/internal/cerrors"
	"github.com/duchoang612/crypto-regime-bot/internal/exchange"
	"github.com/duchoang612/crypto-regime-bot/internal/journal"
	"github.com/duchoang612/crypto-regime-bot/internal/monitoring"
	"github.com/duchoang612/crypto-regime-bot/internal/portfolio"
)

// Reconcile compares internal position state against the exchange and
// corrects divergence, treating the exchange as ground truth. Ghost
// positions (tracked internally, absent remotely) are dropped as
// externally closed; orphans (open remotely, untracked) are adopted with
// emergency protective levels; size mismatches take the remote quantity.
// Every correction is logged at high severity.
func (e *Engine) Reconcile(ctx context.Context, now time.Time) error {
	remote, err := e.d.Broker.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("trader: reconcile: %w", err)
	}

	bySymbol := make(map[string]exchange.RemotePosition, len(remote))
	for _, r := range remote {
		bySymbol[r.Symbol] = r
	}

	for _, pos := range e.d.Portfolio.Positions() {
		r, ok := bySymbol[pos.Symbol]
		switch {
		case !ok:
			// ghost: exchange says it's gone, likely an externally
			// filled stop; realize at the last known mark
			price, haveMark := e.marks[pos.Symbol]
			if !haveMark {
				price = pos.EntryPrice
			}
			err := cerrors.StateErr("reconcile", pos.Symbol,
				fmt.Errorf("ghost position closed externally, realizing at %.4f", price))
			e.logError("%v", err)
			if e.cfg.Metrics {
				monitoring.RecordError("state")
			}

			strategyID := pos.StrategyID
			margin := pos.Margin
			pnl, closeErr := e.d.Portfolio.Close(pos.Symbol, pos.Quantity, price, 0)
			if closeErr != nil {
				pos.Flagged = true
				return fmt.Errorf("trader: reconcile ghost %s: %w", pos.Symbol, closeErr)
			}
			win := pnl > 0
			// the externally filled exit still belongs in the strategy's
			// performance window; adopted positions carry no strategy
			if strategyID != "" {
				pnlPct := 0.0
				if margin > 0 {
					pnlPct = pnl / margin
				}
				e.d.Controller.RecordTrade(adaptive.TradeRecord{
					StrategyID: strategyID,
					PnLPct:     pnlPct,
					Win:        win,
					Timestamp:  now,
				})
			}
			// a ghost close is almost always an externally filled stop
			e.d.Validator.RecordClose(pos.Symbol, win, true, now)
			e.journalTrade(journal.TradeRecord{
				Timestamp: now,
				Symbol:    pos.Symbol,
				Event:     "close",
				Direction: pos.Direction,
				Quantity:  pos.Quantity,
				Price:     price,
				PnL:       pnl,
				Reason:    "reconciliation",
			})

		case r.Quantity != pos.Quantity:
			err := cerrors.StateErr("reconcile", pos.Symbol,
				fmt.Errorf("size mismatch: internal %.6f, exchange %.6f", pos.Quantity, r.Quantity))
			e.logError("%v", err)
			if e.cfg.Metrics {
				monitoring.RecordError("state")
			}
			pos.Quantity = r.Quantity
		}
		delete(bySymbol, pos.Symbol)
	}

	// orphans: open on the exchange with no internal record
	for _, r := range bySymbol {
		err := cerrors.StateErr("reconcile", r.Symbol,
			fmt.Errorf("orphan position adopted: %s qty %.6f @ %.4f", r.Direction, r.Quantity, r.EntryPrice))
		e.logError("%v", err)
		if e.cfg.Metrics {
			monitoring.RecordError("state")
		}

		sign := r.Direction.Sign()
		risk := r.EntryPrice * e.cfg.EmergencyStopPct
		e.d.Portfolio.Adopt(&portfolio.Position{
			Symbol:      r.Symbol,
			Direction:   r.Direction,
			EntryPrice:  r.EntryPrice,
			Quantity:    r.Quantity,
			Leverage:    r.Leverage,
			StopPrice:   r.EntryPrice - sign*risk,
			TakeProfit:  r.EntryPrice + sign*r.EntryPrice*e.cfg.EmergencyTargetPct,
			InitialRisk: risk,
			OpenedAt:    now,
		})
	}
	return nil
}
