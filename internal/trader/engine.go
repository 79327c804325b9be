// Package trader runs the per-symbol evaluation pass shared by live
// trading and replay: features → regime → strategy → filter chain → risk
// validation → execution → lifecycle. Live and replay drive the same
// Engine with different exchanges, so the decision logic cannot diverge
// between the two modes.
package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/adaptive"
	"github.com/duchoang612/crypto-regime-bot/internal/exchange"
	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/filter"
	"github.com/duchoang612/crypto-regime-bot/internal/indicators"
	"github.com/duchoang612/crypto-regime-bot/internal/journal"
	"github.com/duchoang612/crypto-regime-bot/internal/lifecycle"
	"github.com/duchoang612/crypto-regime-bot/internal/logger"
	"github.com/duchoang612/crypto-regime-bot/internal/monitoring"
	"github.com/duchoang612/crypto-regime-bot/internal/portfolio"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/risk"
	"github.com/duchoang612/crypto-regime-bot/internal/strategy"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// Config holds the engine-level settings not owned by a component.
type Config struct {
	// EmergencyStopPct / EmergencyTargetPct protect positions adopted
	// from the exchange during reconciliation, as fractions of entry.
	EmergencyStopPct   float64 `json:"emergency_stop_pct"`
	EmergencyTargetPct float64 `json:"emergency_target_pct"`
	// Metrics enables the Prometheus collectors; replay keeps them off.
	Metrics bool `json:"metrics"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{EmergencyStopPct: 0.02, EmergencyTargetPct: 0.04, Metrics: false}
}

// MarketExtras are the optional collaborator feeds consumed by the
// sentiment/positioning filters.
type MarketExtras struct {
	FundingRate        float64
	HasFunding         bool
	OrderBookImbalance float64
	HasOrderBook       bool
	Sentiment          float64
	HasSentiment       bool
}

// ClosedTrade is one realized close from the lifecycle scan.
type ClosedTrade struct {
	Symbol   string
	Reason   lifecycle.CloseReason
	Quantity float64
	Price    float64
	Fee      float64
	PnL      float64
	Full     bool
}

// Result reports what one symbol's evaluation did.
type Result struct {
	Symbol           string
	Regime           regime.Regime
	Signal           *strategy.TradeSignal
	Verdict          *risk.Verdict
	Closes           []ClosedTrade
	Opened           *portfolio.Position
	InsufficientData bool
}

// Deps are the engine's collaborators. Journal, Log and Notifier may be
// nil.
type Deps struct {
	Features   *features.Provider
	Classifier *regime.Classifier
	Selector   *strategy.Selector
	Chain      *filter.Chain
	Validator  *risk.Validator
	Controller *adaptive.Controller
	Lifecycle  *lifecycle.Manager
	Portfolio  *portfolio.Portfolio
	Broker     exchange.Exchange
	Journal    *journal.Writer
	Log        *logger.Logger
}

// Engine evaluates one symbol at a time, owned by a single loop.
type Engine struct {
	cfg Config
	d   Deps

	marks map[string]float64
}

// NewEngine wires the pipeline.
func NewEngine(cfg Config, d Deps) *Engine {
	return &Engine{cfg: cfg, d: d, marks: make(map[string]float64)}
}

// Portfolio exposes the account state for dashboards and reports.
func (e *Engine) Portfolio() *portfolio.Portfolio { return e.d.Portfolio }

// Marks returns the latest known price per symbol.
func (e *Engine) Marks() map[string]float64 { return e.marks }

// BeginPass starts a new evaluation pass: the per-tick entry clustering
// counter resets and the daily P&L baseline rolls over on a new UTC day.
func (e *Engine) BeginPass(now time.Time) {
	e.d.Validator.BeginTick()
	value := e.d.Portfolio.TotalValue(e.marks)
	if e.d.Portfolio.ResetDailyIfNeeded(now, value) {
		e.logInfo("daily baseline reset at value %.2f", value)
	}
}

// ProcessBar evaluates one symbol against its latest closed bar. The
// candle slices are trailing windows ending at the bar under evaluation.
// Exits run before entries so freed slots are usable within the same
// pass. A data error fails closed: exits still run, no entry is
// considered, and no error is returned.
func (e *Engine) ProcessBar(ctx context.Context, symbol string, primary, higher []types.Candle, extras MarketExtras) (*Result, error) {
	if len(primary) == 0 {
		return nil, fmt.Errorf("trader: no candles for %s", symbol)
	}
	bar := primary[len(primary)-1]
	now := bar.Timestamp
	e.marks[symbol] = bar.Close

	res := &Result{Symbol: symbol}

	snap, err := e.d.Features.Snapshot(symbol, primary, higher)
	if err != nil {
		if !errors.Is(err, indicators.ErrInsufficientData) {
			return nil, fmt.Errorf("trader: features for %s: %w", symbol, err)
		}
		res.InsufficientData = true
		if e.cfg.Metrics {
			monitoring.RecordError("data")
		}
	}

	// exit scan first; stop checks need only the bar itself
	var feats *features.Vector
	if snap != nil {
		feats = &snap.Primary
	}
	closes, err := e.checkExits(ctx, symbol, bar, feats)
	res.Closes = closes
	if err != nil {
		return res, err
	}
	if res.InsufficientData {
		return res, nil
	}

	reg := e.d.Classifier.Classify(symbol, regime.Inputs{
		ADX:       snap.Primary.ADX,
		HigherADX: snap.Higher.ADX,
		ATR:       snap.Primary.ATR,
		ATRSMA:    snap.Primary.ATRSMA,
	})
	res.Regime = reg
	if e.cfg.Metrics {
		monitoring.SetRegime(symbol, int(reg))
	}

	st := e.d.Selector.ForRegime(reg)
	sig := st.Evaluate(snap)

	// bounded adaptive adjustments to the strategy's stop and target
	ovr := e.d.Controller.OverridesFor(st.ID())
	if sig.Direction != types.DirectionNone {
		sig.StopDistance *= ovr.StopScale
		sig.RewardRisk *= ovr.RewardRiskScale
	}

	fctx := &filter.Context{
		Snapshot:           snap,
		Regime:             reg,
		FundingRate:        extras.FundingRate,
		HasFunding:         extras.HasFunding,
		OrderBookImbalance: extras.OrderBookImbalance,
		HasOrderBook:       extras.HasOrderBook,
		Sentiment:          extras.Sentiment,
		HasSentiment:       extras.HasSentiment,
	}
	sig = e.d.Chain.Apply(sig, fctx)
	res.Signal = sig
	if e.cfg.Metrics {
		monitoring.SetStrategyConfidence(st.ID(), sig.Confidence)
	}

	if sig.Direction == types.DirectionNone {
		e.journalDecision(now, symbol, reg, sig, nil, snap)
		if e.cfg.Metrics {
			monitoring.RecordDecision(symbol, "no_signal")
		}
		return res, nil
	}

	value := e.d.Portfolio.TotalValue(e.marks)
	verdict := e.d.Validator.Validate(sig, e.d.Portfolio, value, reg, now)
	res.Verdict = &verdict
	e.journalDecision(now, symbol, reg, sig, &verdict, snap)

	if !verdict.Accepted {
		if e.cfg.Metrics {
			monitoring.RecordDecision(symbol, "rejected")
			monitoring.RecordRejection(string(verdict.Reason))
		}
		return res, nil
	}

	opened, err := e.openPosition(ctx, sig, verdict.Size, now)
	if err != nil {
		if e.cfg.Metrics {
			monitoring.RecordError("execution")
		}
		return res, fmt.Errorf("trader: open %s: %w", symbol, err)
	}
	res.Opened = opened
	if e.cfg.Metrics {
		monitoring.RecordDecision(symbol, "opened")
		monitoring.RecordTrade(symbol, sig.Direction.String(), "open")
	}
	return res, nil
}

func (e *Engine) openPosition(ctx context.Context, sig *strategy.TradeSignal, size risk.SizeResult, now time.Time) (*portfolio.Position, error) {
	fill, err := e.d.Broker.PlaceMarketOrder(ctx, exchange.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     sig.Direction,
		Quantity: size.Quantity,
		Price:    sig.Price,
	})
	if err != nil {
		return nil, err
	}

	sign := sig.Direction.Sign()
	pos := &portfolio.Position{
		Symbol:            sig.Symbol,
		Direction:         sig.Direction,
		EntryPrice:        fill.Price,
		Quantity:          fill.Quantity,
		Leverage:          size.Leverage,
		Margin:            size.Margin,
		StopPrice:         fill.Price - sign*sig.StopDistance,
		TakeProfit:        fill.Price + sign*sig.StopDistance*sig.RewardRisk,
		InitialRisk:       sig.StopDistance,
		OpenedAt:          now,
		StrategyID:        sig.StrategyID,
		ConfidenceAtEntry: sig.Confidence,
	}
	if err := e.d.Portfolio.Open(pos, fill.Fee); err != nil {
		return nil, err
	}
	e.d.Validator.RecordEntry(now)

	e.logTrade("OPEN %s %s qty=%.6f entry=%.4f stop=%.4f target=%.4f conf=%.2f strategy=%s",
		sig.Symbol, sig.Direction, pos.Quantity, pos.EntryPrice, pos.StopPrice, pos.TakeProfit,
		sig.Confidence, sig.StrategyID)
	e.journalTrade(journal.TradeRecord{
		Timestamp:  now,
		Symbol:     sig.Symbol,
		Event:      "open",
		Direction:  sig.Direction,
		Quantity:   pos.Quantity,
		Price:      pos.EntryPrice,
		Fee:        fill.Fee,
		StrategyID: sig.StrategyID,
	})
	return pos, nil
}

// checkExits runs the lifecycle scan for the symbol and executes any
// close synchronously. A failed close flags the position and propagates
// the error; the position is never dropped.
func (e *Engine) checkExits(ctx context.Context, symbol string, bar types.Candle, feats *features.Vector) ([]ClosedTrade, error) {
	pos := e.d.Portfolio.Position(symbol)
	if pos == nil {
		return nil, nil
	}
	instructions := e.d.Lifecycle.Evaluate(pos, bar, feats)

	var out []ClosedTrade
	for _, ins := range instructions {
		closed, err := e.executeClose(ctx, pos, ins, bar.Timestamp)
		if err != nil {
			pos.Flagged = true
			e.logError("close %s failed, position flagged: %v", symbol, err)
			if e.cfg.Metrics {
				monitoring.RecordError("execution")
			}
			return out, fmt.Errorf("trader: close %s: %w", symbol, err)
		}
		pos.Flagged = false
		out = append(out, closed)
	}
	return out, nil
}

func (e *Engine) executeClose(ctx context.Context, pos *portfolio.Position, ins lifecycle.Instruction, now time.Time) (ClosedTrade, error) {
	fill, err := e.d.Broker.PlaceMarketOrder(ctx, exchange.OrderRequest{
		Symbol:   pos.Symbol,
		Side:     pos.Direction.Opposite(),
		Quantity: ins.Quantity,
		Price:    ins.Price,
		Reduce:   true,
	})
	if err != nil {
		return ClosedTrade{}, err
	}

	marginReleased := pos.Margin * fill.Quantity / pos.Quantity
	full := fill.Quantity >= pos.Quantity-1e-9
	strategyID := pos.StrategyID

	pnl, err := e.d.Portfolio.Close(pos.Symbol, fill.Quantity, fill.Price, fill.Fee)
	if err != nil {
		return ClosedTrade{}, err
	}

	win := pnl > 0
	pnlPct := 0.0
	if marginReleased > 0 {
		pnlPct = pnl / marginReleased
	}
	e.d.Controller.RecordTrade(adaptive.TradeRecord{
		StrategyID: strategyID,
		PnLPct:     pnlPct,
		Win:        win,
		Timestamp:  now,
	})
	stopOut := ins.Reason == lifecycle.ReasonStopLoss || ins.Reason == lifecycle.ReasonTrailingStop
	e.d.Validator.RecordClose(pos.Symbol, win, stopOut, now)

	// deferred position mutations (staircase stop/trail/target changes)
	// commit only once the close order has actually filled
	e.d.Lifecycle.ApplyPostFill(pos, ins.PostFill)

	event := "close"
	if !full {
		event = "partial_close"
	}
	e.logTrade("CLOSE %s %s qty=%.6f price=%.4f pnl=%.4f reason=%s",
		pos.Symbol, pos.Direction, fill.Quantity, fill.Price, pnl, ins.Reason)
	e.journalTrade(journal.TradeRecord{
		Timestamp:  now,
		Symbol:     pos.Symbol,
		Event:      event,
		Direction:  pos.Direction,
		Quantity:   fill.Quantity,
		Price:      fill.Price,
		Fee:        fill.Fee,
		PnL:        pnl,
		Reason:     string(ins.Reason),
		StrategyID: strategyID,
	})
	if e.cfg.Metrics {
		monitoring.RecordTrade(pos.Symbol, pos.Direction.String(), event)
	}

	return ClosedTrade{
		Symbol:   pos.Symbol,
		Reason:   ins.Reason,
		Quantity: fill.Quantity,
		Price:    fill.Price,
		Fee:      fill.Fee,
		PnL:      pnl,
		Full:     full,
	}, nil
}

// CloseAll force-closes every open position at its current mark. Replay
// calls it at the end of the series; live mode uses it for shutdown when
// configured to flatten.
func (e *Engine) CloseAll(ctx context.Context, reason lifecycle.CloseReason, now time.Time) ([]ClosedTrade, error) {
	var out []ClosedTrade
	for _, pos := range e.d.Portfolio.Positions() {
		price, ok := e.marks[pos.Symbol]
		if !ok {
			price = pos.EntryPrice
		}
		closed, err := e.executeClose(ctx, pos, lifecycle.Instruction{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			Price:    price,
			Reason:   reason,
			Full:     true,
		}, now)
		if err != nil {
			pos.Flagged = true
			return out, fmt.Errorf("trader: force close %s: %w", pos.Symbol, err)
		}
		out = append(out, closed)
	}
	return out, nil
}

// Snapshot journals and publishes the per-tick portfolio state.
func (e *Engine) Snapshot(now time.Time) {
	value := e.d.Portfolio.TotalValue(e.marks)
	if e.cfg.Metrics {
		monitoring.SetPortfolio(value, e.d.Portfolio.OpenCount())
	}
	if e.d.Journal == nil {
		return
	}
	_ = e.d.Journal.Snapshot(journal.SnapshotRecord{
		Timestamp:     now,
		TotalValue:    value,
		FreeBalance:   e.d.Portfolio.FreeBalance(),
		PeakValue:     e.d.Portfolio.PeakValue(),
		DailyPnLPct:   e.d.Portfolio.DailyPnLPct(value),
		Drawdown:      e.d.Portfolio.Drawdown(value),
		OpenPositions: e.d.Portfolio.OpenCount(),
	})
}

func (e *Engine) journalDecision(now time.Time, symbol string, reg regime.Regime, sig *strategy.TradeSignal, verdict *risk.Verdict, snap *features.Snapshot) {
	if e.d.Journal == nil {
		return
	}
	rec := journal.DecisionRecord{
		Timestamp:  now,
		Symbol:     symbol,
		Regime:     reg.String(),
		StrategyID: sig.StrategyID,
		Direction:  sig.Direction.String(),
		Confidence: sig.Confidence,
		Rationale:  sig.Rationale,
	}
	if snap != nil {
		rec.Features = snap.Primary
	}
	if verdict != nil {
		rec.Accepted = verdict.Accepted
		rec.Reason = string(verdict.Reason)
		rec.Size = verdict.Size
	}
	_ = e.d.Journal.Decision(rec)
}

func (e *Engine) journalTrade(rec journal.TradeRecord) {
	if e.d.Journal != nil {
		_ = e.d.Journal.Trade(rec)
	}
}

func (e *Engine) logInfo(format string, args ...any) {
	if e.d.Log != nil {
		e.d.Log.Info(format, args...)
	}
}

func (e *Engine) logError(format string, args ...any) {
	if e.d.Log != nil {
		e.d.Log.Error(format, args...)
	}
}

func (e *Engine) logTrade(format string, args ...any) {
	if e.d.Log != nil {
		e.d.Log.Trade(format, args...)
	}
}
