// Package regime classifies market behavior from trend-strength and
// volatility features. The classification selects which strategy evaluates
// the bar, so stability matters more than responsiveness: downgrades
// toward RANGING are debounced with a consecutive-bar counter while
// upgrades apply immediately.
package regime

import "fmt"

// Regime is the market behavior classification.
type Regime int

const (
	Ranging Regime = iota
	TrendingStrong
	TrendingWeak
	Volatile
)

func (r Regime) String() string {
	switch r {
	case TrendingStrong:
		return "TRENDING_STRONG"
	case TrendingWeak:
		return "TRENDING_WEAK"
	case Volatile:
		return "VOLATILE"
	default:
		return "RANGING"
	}
}

// Config holds the classification thresholds.
type Config struct {
	// ADXStrong is the trend-strength threshold for a trending market.
	ADXStrong float64 `json:"adx_strong"`
	// ADXWeakLow is the lower bound of the higher-timeframe weak band.
	// A primary trend with higher-timeframe ADX in [ADXWeakLow, ADXStrong)
	// is TRENDING_WEAK.
	ADXWeakLow float64 `json:"adx_weak_low"`
	// ATRSpikeRatio classifies the bar VOLATILE when ATR exceeds this
	// multiple of its own moving average, regardless of trend strength.
	ATRSpikeRatio float64 `json:"atr_spike_ratio"`
	// RangingConfirmBars is the hysteresis: the number of consecutive
	// disqualifying bars required before downgrading to RANGING.
	RangingConfirmBars int `json:"ranging_confirm_bars"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ADXStrong:          25,
		ADXWeakLow:         18,
		ATRSpikeRatio:      1.5,
		RangingConfirmBars: 3,
	}
}

// Validate checks threshold consistency.
func (c Config) Validate() error {
	if c.ADXWeakLow <= 0 || c.ADXStrong <= c.ADXWeakLow {
		return fmt.Errorf("regime: adx thresholds must satisfy 0 < weak_low (%.1f) < strong (%.1f)",
			c.ADXWeakLow, c.ADXStrong)
	}
	if c.ATRSpikeRatio <= 1 {
		return fmt.Errorf("regime: atr_spike_ratio must exceed 1, got %.2f", c.ATRSpikeRatio)
	}
	if c.RangingConfirmBars < 1 {
		return fmt.Errorf("regime: ranging_confirm_bars must be at least 1, got %d", c.RangingConfirmBars)
	}
	return nil
}

// Inputs are the features the classifier reads.
type Inputs struct {
	ADX       float64 // primary timeframe trend strength
	HigherADX float64 // confirmation timeframe trend strength
	ATR       float64
	ATRSMA    float64
}

type symbolState struct {
	current      Regime
	disqualified int // consecutive bars failing every non-ranging test
}

// Classifier tracks per-symbol regime state across bars.
// It is driven by a single evaluation loop and is not safe for
// concurrent use.
type Classifier struct {
	cfg   Config
	state map[string]*symbolState
}

// NewClassifier returns a classifier with all symbols starting RANGING.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, state: make(map[string]*symbolState)}
}

// Current returns the last classification for the symbol.
func (c *Classifier) Current(symbol string) Regime {
	if s, ok := c.state[symbol]; ok {
		return s.current
	}
	return Ranging
}

// Classify folds one bar's features into the symbol's regime.
//
// Volatility dominates: an ATR spike is VOLATILE regardless of ADX. Then
// trend strength on both timeframes decides TRENDING_STRONG vs
// TRENDING_WEAK. A bar that qualifies for none of those counts toward the
// RANGING downgrade; the downgrade only lands after RangingConfirmBars
// consecutive disqualifying bars, and any qualifying bar resets the count.
func (c *Classifier) Classify(symbol string, in Inputs) Regime {
	s, ok := c.state[symbol]
	if !ok {
		s = &symbolState{current: Ranging}
		c.state[symbol] = s
	}

	if next, qualified := c.classify(in); qualified {
		s.disqualified = 0
		s.current = next
		return s.current
	}

	if s.current == Ranging {
		return Ranging
	}
	s.disqualified++
	if s.disqualified >= c.cfg.RangingConfirmBars {
		s.current = Ranging
		s.disqualified = 0
	}
	return s.current
}

func (c *Classifier) classify(in Inputs) (Regime, bool) {
	if in.ATRSMA > 0 && in.ATR > c.cfg.ATRSpikeRatio*in.ATRSMA {
		return Volatile, true
	}
	if in.ADX >= c.cfg.ADXStrong {
		if in.HigherADX >= c.cfg.ADXStrong {
			return TrendingStrong, true
		}
		if in.HigherADX >= c.cfg.ADXWeakLow {
			return TrendingWeak, true
		}
	}
	return Ranging, false
}

// Reset clears all per-symbol state. Replay uses it between folds so one
// fold's hysteresis never leaks into the next.
func (c *Classifier) Reset() {
	c.state = make(map[string]*symbolState)
}
