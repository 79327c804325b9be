package risk

import "fmt"

// RejectReason identifies which check vetoed a signal. Rejections are
// expected, non-exceptional outcomes: they are journaled, never escalated.
type RejectReason string

const (
	ReasonNone           RejectReason = ""
	ReasonLowConfidence  RejectReason = "confidence_below_minimum"
	ReasonRewardRisk     RejectReason = "reward_risk_below_minimum"
	ReasonDailyLossLimit RejectReason = "daily_loss_limit"
	ReasonMaxDrawdown    RejectReason = "max_drawdown"
	ReasonMaxPositions   RejectReason = "max_positions"
	ReasonSymbolOpen     RejectReason = "position_already_open"
	ReasonCooldown       RejectReason = "symbol_cooldown"
	ReasonHourlyCap      RejectReason = "hourly_trade_cap"
	ReasonDailyCap       RejectReason = "daily_trade_cap"
	ReasonDirectionCap   RejectReason = "directional_exposure_cap"
	ReasonClusterCap     RejectReason = "entry_cluster_cap"
	ReasonMinNotional    RejectReason = "below_min_notional"
)

// SizeResult is the computed position size for an accepted signal.
type SizeResult struct {
	Margin   float64 `json:"margin"`
	Notional float64 `json:"notional"`
	Quantity float64 `json:"quantity"`
	Leverage float64 `json:"leverage"`
	// StopWidened is set when the signal's stop was below the noise
	// floor and was widened to it.
	StopWidened bool `json:"stop_widened,omitempty"`
}

// Verdict is the validator's decision on one signal.
type Verdict struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
	Detail   string       `json:"detail,omitempty"`
	Size     SizeResult   `json:"size,omitempty"`
}

func rejected(reason RejectReason, format string, args ...any) Verdict {
	return Verdict{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Config holds the risk limits and sizing parameters. Defaults are
// documented on DefaultConfig; every field is validated at startup.
type Config struct {
	// BaseFraction of portfolio value committed as margin before scaling.
	BaseFraction float64 `json:"base_fraction"`
	Leverage     float64 `json:"leverage"`

	MaxPositions      int `json:"max_positions"`
	MaxSameDirection  int `json:"max_same_direction"`
	MaxEntriesPerTick int `json:"max_entries_per_tick"`

	DailyLossLimitPct float64 `json:"daily_loss_limit_pct"`
	MaxDrawdownPct    float64 `json:"max_drawdown_pct"`

	// MinStopDistancePct is the noise floor for stops, as a fraction of
	// entry price. Stops tighter than this get widened to it.
	MinStopDistancePct float64 `json:"min_stop_distance_pct"`
	// RewardRiskEpsilon tolerates float drift on the reward:risk check.
	RewardRiskEpsilon float64 `json:"reward_risk_epsilon"`

	CooldownBars int `json:"cooldown_bars"`
	// CooldownDoubleAfter doubles the cooldown once a symbol reaches
	// this many consecutive losses.
	CooldownDoubleAfter int `json:"cooldown_double_after"`

	MaxTradesPerHour int `json:"max_trades_per_hour"`
	MaxTradesPerDay  int `json:"max_trades_per_day"`

	// ConfidenceSizeFloor is the sizing multiplier at minimum acceptable
	// confidence; it interpolates linearly to 1.0 at full confidence.
	ConfidenceSizeFloor float64 `json:"confidence_size_floor"`
	VolatileRegimeScale float64 `json:"volatile_regime_scale"`

	// Drawdown sizing taper: full size up to Start, linear down to
	// Floor at End.
	DrawdownScaleStart float64 `json:"drawdown_scale_start"`
	DrawdownScaleEnd   float64 `json:"drawdown_scale_end"`
	DrawdownScaleFloor float64 `json:"drawdown_scale_floor"`

	// MaxRiskPerTradePct caps the worst-case loss at the stop as a
	// fraction of portfolio value.
	MaxRiskPerTradePct float64 `json:"max_risk_per_trade_pct"`
	MinNotional        float64 `json:"min_notional"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseFraction:        0.08,
		Leverage:            15,
		MaxPositions:        3,
		MaxSameDirection:    1,
		MaxEntriesPerTick:   2,
		DailyLossLimitPct:   0.12,
		MaxDrawdownPct:      0.35,
		MinStopDistancePct:  0.015,
		RewardRiskEpsilon:   0.01,
		CooldownBars:        5,
		CooldownDoubleAfter: 2,
		MaxTradesPerHour:    2,
		MaxTradesPerDay:     12,
		ConfidenceSizeFloor: 0.60,
		VolatileRegimeScale: 0.67,
		DrawdownScaleStart:  0.10,
		DrawdownScaleEnd:    0.20,
		DrawdownScaleFloor:  0.25,
		MaxRiskPerTradePct:  0.025,
		MinNotional:         5.0,
	}
}

// Validate rejects inconsistent limit combinations at startup.
func (c Config) Validate() error {
	if c.BaseFraction <= 0 || c.BaseFraction > 1 {
		return fmt.Errorf("risk: base_fraction must be in (0,1], got %.3f", c.BaseFraction)
	}
	if c.Leverage < 1 {
		return fmt.Errorf("risk: leverage must be at least 1, got %.1f", c.Leverage)
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("risk: max_positions must be at least 1, got %d", c.MaxPositions)
	}
	if c.MaxSameDirection < 1 || c.MaxSameDirection > c.MaxPositions {
		return fmt.Errorf("risk: max_same_direction %d must be in [1, max_positions %d]",
			c.MaxSameDirection, c.MaxPositions)
	}
	if c.MaxEntriesPerTick < 1 {
		return fmt.Errorf("risk: max_entries_per_tick must be at least 1, got %d", c.MaxEntriesPerTick)
	}
	if c.DailyLossLimitPct <= 0 || c.DailyLossLimitPct >= 1 {
		return fmt.Errorf("risk: daily_loss_limit_pct must be in (0,1), got %.3f", c.DailyLossLimitPct)
	}
	if c.MaxDrawdownPct <= c.DailyLossLimitPct || c.MaxDrawdownPct >= 1 {
		return fmt.Errorf("risk: max_drawdown_pct %.3f must exceed daily_loss_limit_pct %.3f and stay below 1",
			c.MaxDrawdownPct, c.DailyLossLimitPct)
	}
	if c.MinStopDistancePct <= 0 {
		return fmt.Errorf("risk: min_stop_distance_pct must be positive, got %.4f", c.MinStopDistancePct)
	}
	if c.CooldownBars < 0 || c.CooldownDoubleAfter < 1 {
		return fmt.Errorf("risk: invalid cooldown settings (bars %d, double_after %d)",
			c.CooldownBars, c.CooldownDoubleAfter)
	}
	if c.MaxTradesPerHour < 1 || c.MaxTradesPerDay < c.MaxTradesPerHour {
		return fmt.Errorf("risk: trade caps inconsistent (hour %d, day %d)",
			c.MaxTradesPerHour, c.MaxTradesPerDay)
	}
	if c.ConfidenceSizeFloor <= 0 || c.ConfidenceSizeFloor > 1 {
		return fmt.Errorf("risk: confidence_size_floor must be in (0,1], got %.2f", c.ConfidenceSizeFloor)
	}
	if c.VolatileRegimeScale <= 0 || c.VolatileRegimeScale > 1 {
		return fmt.Errorf("risk: volatile_regime_scale must be in (0,1], got %.2f", c.VolatileRegimeScale)
	}
	if c.DrawdownScaleStart < 0 || c.DrawdownScaleEnd <= c.DrawdownScaleStart {
		return fmt.Errorf("risk: drawdown taper must satisfy 0 <= start (%.2f) < end (%.2f)",
			c.DrawdownScaleStart, c.DrawdownScaleEnd)
	}
	if c.DrawdownScaleFloor <= 0 || c.DrawdownScaleFloor > 1 {
		return fmt.Errorf("risk: drawdown_scale_floor must be in (0,1], got %.2f", c.DrawdownScaleFloor)
	}
	if c.MaxRiskPerTradePct <= 0 {
		return fmt.Errorf("risk: max_risk_per_trade_pct must be positive, got %.4f", c.MaxRiskPerTradePct)
	}
	if c.MinNotional < 0 {
		return fmt.Errorf("risk: min_notional must be non-negative, got %.2f", c.MinNotional)
	}
	return nil
}
