// Package lifecycle owns every open position from fill to close. Each
// evaluation tick the manager walks the open set, applies the stop /
// breakeven / take-profit / trailing rules in a fixed order, and returns
// close instructions for the driver to execute synchronously. Stops only
// ever ratchet toward price, never away from it.
package lifecycle

import (
	"fmt"

	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/portfolio"
	"github.com/duchoang612/crypto-regime-bot/internal/strategy"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// CloseReason explains why a position (or part of it) is being closed.
type CloseReason string

const (
	ReasonStopLoss      CloseReason = "stop_loss"
	ReasonTrailingStop  CloseReason = "trailing_stop"
	ReasonTakeProfit    CloseReason = "take_profit"
	ReasonPartialTarget CloseReason = "partial_take_profit"
	ReasonMomentumDecay CloseReason = "momentum_decay"
	ReasonEndOfReplay   CloseReason = "end_of_replay"
	ReasonReconcile     CloseReason = "reconciliation"
)

// ExitPolicy selects what happens when the take-profit level trades.
type ExitPolicy string

const (
	// PolicyFull closes the whole position at the target.
	PolicyFull ExitPolicy = "full"
	// PolicyStaircase closes a fraction at the target, moves the stop on
	// the remainder to entry and arms trailing.
	PolicyStaircase ExitPolicy = "staircase"
	// PolicyHybrid keeps the whole position, floors the stop at the
	// target price and arms trailing.
	PolicyHybrid ExitPolicy = "hybrid"
)

// Instruction is one close order the driver must execute. Quantity is in
// base units; Price is the deterministic reference price for simulated
// fills (live fills use the market).
type Instruction struct {
	Symbol   string
	Quantity float64
	Price    float64
	Reason   CloseReason
	Full     bool
	// PostFill carries position mutations the driver applies only after
	// the order fills. Nil when the close has no follow-on mutations.
	PostFill *PostFill
}

// PostFill describes stop/trail/target changes that must wait for the
// close order to fill. Mutating the position first would zero the target
// on a rejected order and silently forfeit the retry.
type PostFill struct {
	PartialClosed bool
	StopTo        float64
	ArmTrailFrom  float64
	ClearTarget   bool
}

// Config holds the exit tunables.
type Config struct {
	// BreakevenRR moves the stop to entry once unrealized profit
	// reaches this multiple of the initial risk.
	BreakevenRR float64    `json:"breakeven_rr"`
	Policy      ExitPolicy `json:"policy"`
	// PartialFraction is the share closed at target under staircase.
	PartialFraction float64 `json:"partial_fraction"`
	// TrailRiskMult is the trailing distance in initial-risk multiples.
	TrailRiskMult float64 `json:"trail_risk_mult"`
	// MomentumDecayExit enables the early exit for trend positions whose
	// momentum flips while in profit.
	MomentumDecayExit bool    `json:"momentum_decay_exit"`
	MomentumDecayRR   float64 `json:"momentum_decay_rr"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		BreakevenRR:       1.5,
		Policy:            PolicyStaircase,
		PartialFraction:   0.5,
		TrailRiskMult:     1.0,
		MomentumDecayExit: true,
		MomentumDecayRR:   1.5,
	}
}

// Validate rejects inconsistent exit settings.
func (c Config) Validate() error {
	if c.BreakevenRR <= 0 {
		return fmt.Errorf("lifecycle: breakeven_rr must be positive, got %.2f", c.BreakevenRR)
	}
	switch c.Policy {
	case PolicyFull, PolicyStaircase, PolicyHybrid:
	default:
		return fmt.Errorf("lifecycle: unknown exit policy %q", c.Policy)
	}
	if c.Policy == PolicyStaircase && (c.PartialFraction <= 0 || c.PartialFraction >= 1) {
		return fmt.Errorf("lifecycle: partial_fraction must be in (0,1), got %.2f", c.PartialFraction)
	}
	if c.TrailRiskMult <= 0 {
		return fmt.Errorf("lifecycle: trail_risk_mult must be positive, got %.2f", c.TrailRiskMult)
	}
	if c.MomentumDecayExit && c.MomentumDecayRR <= 0 {
		return fmt.Errorf("lifecycle: momentum_decay_rr must be positive, got %.2f", c.MomentumDecayRR)
	}
	return nil
}

// Manager evaluates exits. It is the only component that mutates open
// positions.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Evaluate applies the exit rules to one position against the latest bar.
// feats may be nil when the feature vector is unavailable; the momentum
// decay check is skipped then. The intra-bar ambiguity between stop and
// target is resolved pessimistically: the stop is checked first.
func (m *Manager) Evaluate(pos *portfolio.Position, bar types.Candle, feats *features.Vector) []Instruction {
	if pos == nil || pos.Quantity <= 0 {
		return nil
	}

	// 1. protective stop, using the bar's adverse extreme
	if pos.StopHit(bar.Low, bar.High) {
		reason := ReasonStopLoss
		if pos.TrailingActive {
			reason = ReasonTrailingStop
		}
		return []Instruction{{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			Price:    pos.StopPrice,
			Reason:   reason,
			Full:     true,
		}}
	}

	// 2. breakeven ratchet
	if !pos.BreakevenSet && pos.RMultiple(bar.Close) >= m.cfg.BreakevenRR {
		if m.ratchet(pos, pos.EntryPrice) {
			pos.BreakevenSet = true
		}
	}

	var out []Instruction

	// 3. take-profit policy
	if pos.TargetHit(bar.Low, bar.High) {
		switch m.cfg.Policy {
		case PolicyFull:
			return []Instruction{{
				Symbol:   pos.Symbol,
				Quantity: pos.Quantity,
				Price:    pos.TakeProfit,
				Reason:   ReasonTakeProfit,
				Full:     true,
			}}
		case PolicyStaircase:
			// mutations ride on the instruction; a failed partial close
			// keeps the target armed for the next bar
			out = append(out, Instruction{
				Symbol:   pos.Symbol,
				Quantity: pos.Quantity * m.cfg.PartialFraction,
				Price:    pos.TakeProfit,
				Reason:   ReasonPartialTarget,
				PostFill: &PostFill{
					PartialClosed: true,
					StopTo:        pos.EntryPrice,
					ArmTrailFrom:  pos.TakeProfit,
					ClearTarget:   true,
				},
			})
		case PolicyHybrid:
			m.ratchet(pos, pos.TakeProfit)
			m.armTrailing(pos, pos.TakeProfit)
			pos.TakeProfit = 0
		}
	}

	// 4. trailing stop follows the best favorable price
	if pos.TrailingActive {
		m.trail(pos, bar)
	}

	// 5. momentum decay: a profitable trend position whose histogram
	// flips against it with oscillator confirmation is exited early.
	// Skipped when the bar already produced a close so quantities never
	// overlap.
	if len(out) == 0 {
		if ins, ok := m.momentumDecay(pos, bar, feats); ok {
			out = append(out, ins)
		}
	}

	return out
}

// ApplyPostFill commits an instruction's deferred mutations after the
// driver confirms the fill.
func (m *Manager) ApplyPostFill(pos *portfolio.Position, pf *PostFill) {
	if pf == nil || pos == nil {
		return
	}
	if pf.PartialClosed {
		pos.PartialClosed = true
		pos.BreakevenSet = true
	}
	if pf.StopTo > 0 {
		m.ratchet(pos, pf.StopTo)
	}
	if pf.ArmTrailFrom > 0 {
		m.armTrailing(pos, pf.ArmTrailFrom)
	}
	if pf.ClearTarget {
		pos.TakeProfit = 0
	}
}

// ratchet moves the stop toward price only. Returns false when the
// proposed stop would loosen the position.
func (m *Manager) ratchet(pos *portfolio.Position, newStop float64) bool {
	if pos.Direction == types.DirectionLong {
		if newStop <= pos.StopPrice {
			return false
		}
	} else if pos.StopPrice > 0 && newStop >= pos.StopPrice {
		return false
	}
	pos.StopPrice = newStop
	return true
}

func (m *Manager) armTrailing(pos *portfolio.Position, fromPrice float64) {
	if !pos.TrailingActive {
		pos.TrailingActive = true
		pos.BestPrice = fromPrice
	}
}

func (m *Manager) trail(pos *portfolio.Position, bar types.Candle) {
	distance := pos.InitialRisk * m.cfg.TrailRiskMult
	if distance <= 0 {
		return
	}
	if pos.Direction == types.DirectionLong {
		if bar.High > pos.BestPrice {
			pos.BestPrice = bar.High
		}
		m.ratchet(pos, pos.BestPrice-distance)
	} else {
		if pos.BestPrice == 0 || bar.Low < pos.BestPrice {
			pos.BestPrice = bar.Low
		}
		m.ratchet(pos, pos.BestPrice+distance)
	}
}

func (m *Manager) momentumDecay(pos *portfolio.Position, bar types.Candle, feats *features.Vector) (Instruction, bool) {
	if !m.cfg.MomentumDecayExit || feats == nil || pos.StrategyID != strategy.TrendFollowingID {
		return Instruction{}, false
	}
	if pos.RMultiple(bar.Close) < m.cfg.MomentumDecayRR {
		return Instruction{}, false
	}
	var decayed bool
	if pos.Direction == types.DirectionLong {
		decayed = feats.MACDHist < 0 && feats.MACDHistPrev >= 0 && feats.RSI < 50
	} else {
		decayed = feats.MACDHist > 0 && feats.MACDHistPrev <= 0 && feats.RSI > 50
	}
	if !decayed {
		return Instruction{}, false
	}
	return Instruction{
		Symbol:   pos.Symbol,
		Quantity: pos.Quantity,
		Price:    bar.Close,
		Reason:   ReasonMomentumDecay,
		Full:     true,
	}, true
}
