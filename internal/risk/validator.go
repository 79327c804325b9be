// Package risk gatekeeps every filtered signal behind an ordered sequence
// of independent vetoes, then sizes the accepted ones. The check order is
// fixed: cheap signal-quality checks run before portfolio-state checks so
// the journaled rejection reason names the first failing constraint.
package risk

import (
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/adaptive"
	"github.com/duchoang612/crypto-regime-bot/internal/portfolio"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/strategy"
)

type symbolRisk struct {
	cooldownUntil     time.Time
	consecutiveLosses int
}

// Validator applies the risk checks and computes position size. Owned by
// the evaluation loop; not safe for concurrent use.
type Validator struct {
	cfg      Config
	interval time.Duration
	selector *strategy.Selector
	adaptive *adaptive.Controller

	symbols         map[string]*symbolRisk
	entryTimes      []time.Time
	entriesThisTick int
	// haltedDay is the UTC day on which the daily-loss breaker latched.
	// Entries stay rejected until that day is over, even if marks recover.
	haltedDay time.Time
}

// NewValidator wires the validator to the strategy set (for per-strategy
// minimums) and the adaptive controller (for bounded overrides). interval
// is the primary bar duration, used to convert cooldown bars to time.
func NewValidator(cfg Config, interval time.Duration, sel *strategy.Selector, ctrl *adaptive.Controller) *Validator {
	return &Validator{
		cfg:      cfg,
		interval: interval,
		selector: sel,
		adaptive: ctrl,
		symbols:  make(map[string]*symbolRisk),
	}
}

// BeginTick resets the per-pass entry clustering counter. The evaluation
// loop calls it once at the start of each pass, before any symbol.
func (v *Validator) BeginTick() { v.entriesThisTick = 0 }

// Validate runs the ordered checks against the signal and, when all pass,
// returns the computed size. value is the marked portfolio value for this
// tick. The signal's stop distance may be widened in place to the noise
// floor.
func (v *Validator) Validate(sig *strategy.TradeSignal, port *portfolio.Portfolio, value float64, reg regime.Regime, now time.Time) Verdict {
	st := v.selector.ByID(sig.StrategyID)
	if st == nil {
		return rejected(ReasonLowConfidence, "unknown strategy %q", sig.StrategyID)
	}
	params := st.Params()
	ovr := v.adaptive.OverridesFor(sig.StrategyID)

	// 1. confidence floor (post-filter, adaptive-shifted)
	minConf := params.MinConfidence + ovr.ConfidenceDelta
	if sig.Confidence < minConf {
		return rejected(ReasonLowConfidence, "confidence %.3f below minimum %.3f", sig.Confidence, minConf)
	}

	// 2. stop noise floor: widen, don't reject. A stop tighter than the
	// floor would be tagged by ordinary noise at leverage.
	widened := false
	if floor := sig.Price * v.cfg.MinStopDistancePct; sig.StopDistance < floor {
		sig.StopDistance = floor
		widened = true
	}

	// 3. reward:risk, with epsilon for float drift
	minRR := params.RewardRisk - v.cfg.RewardRiskEpsilon
	if sig.RewardRisk < minRR {
		return rejected(ReasonRewardRisk, "reward:risk %.2f below minimum %.2f", sig.RewardRisk, params.RewardRisk)
	}

	// 4. circuit breakers. The daily-loss breaker latches for the rest of
	// the UTC day: an intra-day mark recovery must not re-enable entries.
	day := now.UTC().Truncate(24 * time.Hour)
	if v.haltedDay.Equal(day) {
		return rejected(ReasonDailyLossLimit, "trading halted for %s after daily loss limit", day.Format("2006-01-02"))
	}
	if daily := port.DailyPnLPct(value); daily <= -v.cfg.DailyLossLimitPct {
		v.haltedDay = day
		return rejected(ReasonDailyLossLimit, "daily pnl %.2f%% at limit", daily*100)
	}
	drawdown := port.Drawdown(value)
	if drawdown >= v.cfg.MaxDrawdownPct {
		return rejected(ReasonMaxDrawdown, "drawdown %.2f%% at limit", drawdown*100)
	}

	// 5. exposure caps
	if port.OpenCount() >= v.cfg.MaxPositions {
		return rejected(ReasonMaxPositions, "%d positions open", port.OpenCount())
	}
	if port.Position(sig.Symbol) != nil {
		return rejected(ReasonSymbolOpen, "position already open for %s", sig.Symbol)
	}

	// 6. symbol cooldown after a stop-out
	if sr, ok := v.symbols[sig.Symbol]; ok && now.Before(sr.cooldownUntil) {
		return rejected(ReasonCooldown, "cooldown until %s", sr.cooldownUntil.Format(time.RFC3339))
	}

	// 7. trade frequency caps
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)
	hourly, daily := 0, 0
	for _, t := range v.entryTimes {
		if t.After(dayAgo) {
			daily++
			if t.After(hourAgo) {
				hourly++
			}
		}
	}
	if hourly >= v.cfg.MaxTradesPerHour {
		return rejected(ReasonHourlyCap, "%d trades in the last hour", hourly)
	}
	if daily >= v.cfg.MaxTradesPerDay {
		return rejected(ReasonDailyCap, "%d trades in the last day", daily)
	}

	// 8. directional exposure cap
	if port.DirectionCount(sig.Direction) >= v.cfg.MaxSameDirection {
		return rejected(ReasonDirectionCap, "%d %s positions open",
			port.DirectionCount(sig.Direction), sig.Direction)
	}

	// 9. per-tick entry clustering cap
	if v.entriesThisTick >= v.cfg.MaxEntriesPerTick {
		return rejected(ReasonClusterCap, "%d entries this pass", v.entriesThisTick)
	}

	size, verdict := v.size(sig, params, ovr, value, drawdown, reg)
	if verdict != ReasonNone {
		return rejected(verdict, "notional %.2f below exchange minimum %.2f", size.Notional, v.cfg.MinNotional)
	}
	size.StopWidened = widened
	return Verdict{Accepted: true, Size: size}
}

// size computes margin through the multiplicative scaling chain, then
// derives quantity and clamps it by per-trade risk and minimum notional.
func (v *Validator) size(sig *strategy.TradeSignal, params strategy.Params, ovr adaptive.Overrides, value, drawdown float64, reg regime.Regime) (SizeResult, RejectReason) {
	margin := value * v.cfg.BaseFraction

	if reg == regime.Volatile {
		margin *= v.cfg.VolatileRegimeScale
	}

	margin *= v.confidenceScale(sig.Confidence, params.MinConfidence)
	margin *= v.drawdownScale(drawdown)
	margin *= ovr.SizeScale

	leverage := v.cfg.Leverage * ovr.LeverageScale
	if leverage < 1 {
		leverage = 1
	}

	quantity := margin * leverage / sig.Price

	// cap worst-case loss at the stop by the per-trade risk budget
	if sig.StopDistance > 0 {
		if maxQty := value * v.cfg.MaxRiskPerTradePct / sig.StopDistance; quantity > maxQty {
			quantity = maxQty
		}
	}

	notional := quantity * sig.Price
	if notional < v.cfg.MinNotional {
		return SizeResult{Notional: notional}, ReasonMinNotional
	}

	return SizeResult{
		Margin:   notional / leverage,
		Notional: notional,
		Quantity: quantity,
		Leverage: leverage,
	}, ReasonNone
}

// confidenceScale interpolates linearly from the floor multiplier at the
// strategy minimum to 1.0 at full confidence.
func (v *Validator) confidenceScale(confidence, minConf float64) float64 {
	if minConf >= 1 {
		return 1
	}
	t := (confidence - minConf) / (1 - minConf)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return v.cfg.ConfidenceSizeFloor + (1-v.cfg.ConfidenceSizeFloor)*t
}

// drawdownScale tapers size linearly once drawdown exceeds the start
// threshold, bottoming at the floor multiplier at the end threshold.
func (v *Validator) drawdownScale(drawdown float64) float64 {
	if drawdown <= v.cfg.DrawdownScaleStart {
		return 1
	}
	if drawdown >= v.cfg.DrawdownScaleEnd {
		return v.cfg.DrawdownScaleFloor
	}
	t := (drawdown - v.cfg.DrawdownScaleStart) / (v.cfg.DrawdownScaleEnd - v.cfg.DrawdownScaleStart)
	return 1 - t*(1-v.cfg.DrawdownScaleFloor)
}

// RecordEntry notes an accepted entry for frequency and clustering caps.
func (v *Validator) RecordEntry(now time.Time) {
	v.entriesThisTick++
	v.entryTimes = append(v.entryTimes, now)
	// prune anything older than the daily cap horizon
	cutoff := now.Add(-24 * time.Hour)
	for len(v.entryTimes) > 0 && !v.entryTimes[0].After(cutoff) {
		v.entryTimes = v.entryTimes[1:]
	}
}

// RecordClose updates the symbol's cooldown state from a realized
// outcome. A stopped-out loss starts (or doubles, after repeated losses)
// the cooldown; losing exits of other kinds leave it untouched; a win
// clears the consecutive-loss counter.
func (v *Validator) RecordClose(symbol string, win, stopOut bool, now time.Time) {
	sr, ok := v.symbols[symbol]
	if !ok {
		sr = &symbolRisk{}
		v.symbols[symbol] = sr
	}
	if win {
		sr.consecutiveLosses = 0
		return
	}
	if !stopOut {
		return
	}
	sr.consecutiveLosses++
	cooldown := time.Duration(v.cfg.CooldownBars) * v.interval
	if sr.consecutiveLosses >= v.cfg.CooldownDoubleAfter {
		cooldown *= 2
	}
	sr.cooldownUntil = now.Add(cooldown)
}

// ConsecutiveLosses reports the symbol's current losing run.
func (v *Validator) ConsecutiveLosses(symbol string) int {
	if sr, ok := v.symbols[symbol]; ok {
		return sr.consecutiveLosses
	}
	return 0
}

// Reset clears cooldowns and frequency state. Replay uses it between
// folds.
func (v *Validator) Reset() {
	v.symbols = make(map[string]*symbolRisk)
	v.entryTimes = nil
	v.entriesThisTick = 0
	v.haltedDay = time.Time{}
}
