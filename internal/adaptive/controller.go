package adaptive

import "fmt"

// Overrides are the bounded adjustments consumed by the risk validator
// and the evaluation pass. All fields are multiplicative except
// ConfidenceDelta, which shifts the strategy's minimum-confidence
// threshold.
type Overrides struct {
	SizeScale       float64 `json:"size_scale"`
	LeverageScale   float64 `json:"leverage_scale"`
	ConfidenceDelta float64 `json:"confidence_delta"`
	StopScale       float64 `json:"stop_scale"`
	RewardRiskScale float64 `json:"reward_risk_scale"`
}

// Config bounds the overrides. The floors guarantee no strategy is ever
// sized to zero.
type Config struct {
	// WindowSize is the rolling trade-record capacity per strategy.
	WindowSize int `json:"window_size"`
	// MinTrades gates adaptation: below it every override is neutral.
	MinTrades int `json:"min_trades"`

	SizeScaleMin float64 `json:"size_scale_min"`
	SizeScaleMax float64 `json:"size_scale_max"`

	LeverageScaleMin float64 `json:"leverage_scale_min"`
	LeverageScaleMax float64 `json:"leverage_scale_max"`

	// ConfidenceDeltaMax bounds the threshold shift in either direction.
	ConfidenceDeltaMax float64 `json:"confidence_delta_max"`

	StopScaleMin float64 `json:"stop_scale_min"`
	StopScaleMax float64 `json:"stop_scale_max"`

	RewardRiskScaleMin float64 `json:"reward_risk_scale_min"`
	RewardRiskScaleMax float64 `json:"reward_risk_scale_max"`
}

// DefaultConfig returns the documented default bounds. These are tuned
// starting points, not derived constants; they do not transfer across
// instruments or leverage regimes unchanged.
func DefaultConfig() Config {
	return Config{
		WindowSize:         30,
		MinTrades:          8,
		SizeScaleMin:       0.15,
		SizeScaleMax:       1.2,
		LeverageScaleMin:   0.6,
		LeverageScaleMax:   1.0,
		ConfidenceDeltaMax: 0.05,
		StopScaleMin:       0.8,
		StopScaleMax:       1.33,
		RewardRiskScaleMin: 0.75,
		RewardRiskScaleMax: 1.25,
	}
}

// Validate checks bound consistency.
func (c Config) Validate() error {
	if c.WindowSize < 1 || c.MinTrades < 1 || c.MinTrades > c.WindowSize {
		return fmt.Errorf("adaptive: need 1 <= min_trades (%d) <= window_size (%d)", c.MinTrades, c.WindowSize)
	}
	if c.SizeScaleMin <= 0 {
		return fmt.Errorf("adaptive: size_scale_min must be positive, got %.3f", c.SizeScaleMin)
	}
	for _, b := range []struct {
		name     string
		min, max float64
	}{
		{"size_scale", c.SizeScaleMin, c.SizeScaleMax},
		{"leverage_scale", c.LeverageScaleMin, c.LeverageScaleMax},
		{"stop_scale", c.StopScaleMin, c.StopScaleMax},
		{"reward_risk_scale", c.RewardRiskScaleMin, c.RewardRiskScaleMax},
	} {
		if b.min > b.max {
			return fmt.Errorf("adaptive: %s bounds inverted (%.3f > %.3f)", b.name, b.min, b.max)
		}
	}
	return nil
}

// Neutral returns the no-adjustment overrides, clamped into bounds.
func (c Config) Neutral() Overrides {
	return Overrides{
		SizeScale:       clamp(1, c.SizeScaleMin, c.SizeScaleMax),
		LeverageScale:   clamp(1, c.LeverageScaleMin, c.LeverageScaleMax),
		ConfidenceDelta: 0,
		StopScale:       clamp(1, c.StopScaleMin, c.StopScaleMax),
		RewardRiskScale: clamp(1, c.RewardRiskScaleMin, c.RewardRiskScaleMax),
	}
}

// Controller tracks per-strategy outcomes and recomputes overrides after
// every recorded close. Owned by the evaluation loop; not safe for
// concurrent use.
type Controller struct {
	cfg       Config
	windows   map[string]*window
	overrides map[string]Overrides
}

func NewController(cfg Config) *Controller {
	return &Controller{
		cfg:       cfg,
		windows:   make(map[string]*window),
		overrides: make(map[string]Overrides),
	}
}

// RecordTrade appends a closed-trade outcome and recomputes the
// strategy's overrides.
func (c *Controller) RecordTrade(rec TradeRecord) {
	w, ok := c.windows[rec.StrategyID]
	if !ok {
		w = newWindow(c.cfg.WindowSize)
		c.windows[rec.StrategyID] = w
	}
	w.add(rec)
	c.overrides[rec.StrategyID] = c.derive(computeStats(w.ordered()))
}

// StatsFor returns the rolling statistics for the strategy.
func (c *Controller) StatsFor(strategyID string) Stats {
	if w, ok := c.windows[strategyID]; ok {
		return computeStats(w.ordered())
	}
	return Stats{}
}

// OverridesFor returns the current overrides for the strategy, neutral
// until MinTrades outcomes have been observed.
func (c *Controller) OverridesFor(strategyID string) Overrides {
	if o, ok := c.overrides[strategyID]; ok {
		return o
	}
	return c.cfg.Neutral()
}

// derive maps window statistics to bounded overrides through a single
// performance score in [-1, 1].
func (c *Controller) derive(s Stats) Overrides {
	if s.Trades < c.cfg.MinTrades {
		return c.cfg.Neutral()
	}

	score := 0.4*clamp((s.WinRate-0.5)*2, -1, 1) +
		0.3*clamp((s.ProfitFactor-1)/1.5, -1, 1) +
		0.2*s.Trend +
		0.1*clamp(float64(s.Streak)/5, -1, 1)
	score = clamp(score, -1, 1)

	return Overrides{
		SizeScale:     clamp(1+0.8*score, c.cfg.SizeScaleMin, c.cfg.SizeScaleMax),
		LeverageScale: clamp(0.8+0.2*score, c.cfg.LeverageScaleMin, c.cfg.LeverageScaleMax),
		// a hot strategy may trade slightly earlier, a cold one must
		// clear a higher bar
		ConfidenceDelta: clamp(-c.cfg.ConfidenceDeltaMax*score, -c.cfg.ConfidenceDeltaMax, c.cfg.ConfidenceDeltaMax),
		// cold strategies get wider stops: their entries are getting
		// tagged by noise, not thesis failure
		StopScale:       clamp(1-0.2*score, c.cfg.StopScaleMin, c.cfg.StopScaleMax),
		RewardRiskScale: clamp(1+0.2*score, c.cfg.RewardRiskScaleMin, c.cfg.RewardRiskScaleMax),
	}
}

// Reset drops all windows and overrides. Replay uses it between folds.
func (c *Controller) Reset() {
	c.windows = make(map[string]*window)
	c.overrides = make(map[string]Overrides)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
