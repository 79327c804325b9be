// Package config is the single configuration surface: an immutable
// struct loaded from a JSON file with environment overrides for secrets,
// validated once at startup. Components receive their sections by value
// at construction and never read ambient global state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/adaptive"
	"github.com/duchoang612/crypto-regime-bot/internal/exchange"
	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/filter"
	"github.com/duchoang612/crypto-regime-bot/internal/lifecycle"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/risk"
	"github.com/duchoang612/crypto-regime-bot/internal/strategy"
	"github.com/duchoang612/crypto-regime-bot/internal/trader"
)

// TradingConfig drives the evaluation loop.
type TradingConfig struct {
	Symbols []string `json:"symbols"`
	// IntervalMinutes is the primary bar size; the Bybit kline interval
	// string is its decimal form.
	IntervalMinutes int `json:"interval_minutes"`
	// HigherTFMultiple sets the confirmation timeframe as a multiple of
	// the primary bar.
	HigherTFMultiple int `json:"higher_tf_multiple"`
	// WindowBars is the trailing candle window handed to the feature
	// provider.
	WindowBars     int     `json:"window_bars"`
	InitialBalance float64 `json:"initial_balance"`
	// ReconcileEvery is the number of passes between position
	// reconciliations in live mode.
	ReconcileEvery int `json:"reconcile_every"`
	// Paper routes orders to the simulator instead of the venue.
	Paper bool `json:"paper"`
}

// Interval returns the primary bar duration.
func (t TradingConfig) Interval() time.Duration {
	return time.Duration(t.IntervalMinutes) * time.Minute
}

// KlineInterval is the Bybit interval string for the primary bar.
func (t TradingConfig) KlineInterval() string {
	return fmt.Sprintf("%d", t.IntervalMinutes)
}

// StrategiesConfig carries the per-strategy parameters.
type StrategiesConfig struct {
	TrendFollowing strategy.Params `json:"trend_following"`
	MeanReversion  strategy.Params `json:"mean_reversion"`
	Breakout       strategy.Params `json:"breakout"`
}

// ObservabilityConfig covers logs, journal and metrics.
type ObservabilityConfig struct {
	LogDir      string `json:"log_dir"`
	JournalDir  string `json:"journal_dir"`
	MetricsPort int    `json:"metrics_port"`
}

// NotifyConfig enables Telegram alerts; secrets come from env.
type NotifyConfig struct {
	TelegramToken  string `json:"-"`
	TelegramChatID string `json:"-"`
}

// Config is the root configuration.
type Config struct {
	Trading    TradingConfig         `json:"trading"`
	Features   features.Config       `json:"features"`
	Regime     regime.Config         `json:"regime"`
	Strategies StrategiesConfig      `json:"strategies"`
	Filters    filter.Config         `json:"filters"`
	Risk       risk.Config           `json:"risk"`
	Adaptive   adaptive.Config       `json:"adaptive"`
	Lifecycle  lifecycle.Config      `json:"lifecycle"`
	Trader     trader.Config         `json:"trader"`
	Sim        exchange.SimConfig    `json:"sim"`
	Retry      exchange.RetryConfig  `json:"retry"`
	Bybit      exchange.BybitConfig  `json:"bybit"`
	Observe    ObservabilityConfig   `json:"observability"`
	Notify     NotifyConfig          `json:"-"`
}

// Default returns a fully populated configuration.
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			Symbols:          []string{"BTCUSDT"},
			IntervalMinutes:  15,
			HigherTFMultiple: 4,
			WindowBars:       250,
			InitialBalance:   1000,
			ReconcileEvery:   10,
			Paper:            true,
		},
		Features: features.DefaultConfig(),
		Regime:   regime.DefaultConfig(),
		Strategies: StrategiesConfig{
			TrendFollowing: strategy.DefaultTrendFollowingParams(),
			MeanReversion:  strategy.DefaultMeanReversionParams(),
			Breakout:       strategy.DefaultBreakoutParams(),
		},
		Filters:   filter.DefaultConfig(),
		Risk:      risk.DefaultConfig(),
		Adaptive:  adaptive.DefaultConfig(),
		Lifecycle: lifecycle.DefaultConfig(),
		Trader:    trader.DefaultConfig(),
		Sim:       exchange.DefaultSimConfig(),
		Retry:     exchange.DefaultRetryConfig(),
		Observe: ObservabilityConfig{
			LogDir:      "logs",
			JournalDir:  "journal",
			MetricsPort: 9090,
		},
	}
}

// Load reads the JSON file over the defaults, then applies environment
// overrides for secrets. An empty path returns defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		c.Bybit.APIKey = v
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		c.Bybit.APISecret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.TelegramChatID = v
	}
}

// Validate rejects invalid parameter combinations. Startup halts on the
// first failure rather than running with undefined behavior.
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol required")
	}
	if c.Trading.IntervalMinutes < 1 {
		return fmt.Errorf("config: interval_minutes must be at least 1, got %d", c.Trading.IntervalMinutes)
	}
	if c.Trading.HigherTFMultiple < 2 {
		return fmt.Errorf("config: higher_tf_multiple must be at least 2, got %d", c.Trading.HigherTFMultiple)
	}
	if c.Trading.InitialBalance <= 0 {
		return fmt.Errorf("config: initial_balance must be positive, got %.2f", c.Trading.InitialBalance)
	}
	minWindow := c.Features.MinBars() * c.Trading.HigherTFMultiple
	if c.Trading.WindowBars < minWindow {
		return fmt.Errorf("config: window_bars %d too small; the higher timeframe needs at least %d primary bars",
			c.Trading.WindowBars, minWindow)
	}
	if err := c.Regime.Validate(); err != nil {
		return err
	}
	for _, p := range []struct {
		name   string
		params strategy.Params
	}{
		{"trend_following", c.Strategies.TrendFollowing},
		{"mean_reversion", c.Strategies.MeanReversion},
		{"breakout", c.Strategies.Breakout},
	} {
		if p.params.MinConfidence <= 0 || p.params.MinConfidence > 1 {
			return fmt.Errorf("config: %s min_confidence must be in (0,1], got %.2f", p.name, p.params.MinConfidence)
		}
		if p.params.StopATR <= 0 {
			return fmt.Errorf("config: %s stop_atr must be positive, got %.2f", p.name, p.params.StopATR)
		}
		if p.params.RewardRisk < 1 {
			return fmt.Errorf("config: %s reward_risk must be at least 1, got %.2f", p.name, p.params.RewardRisk)
		}
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Adaptive.Validate(); err != nil {
		return err
	}
	if err := c.Lifecycle.Validate(); err != nil {
		return err
	}
	if c.Sim.FeeRate < 0 || c.Sim.SlippageRate < 0 {
		return fmt.Errorf("config: sim fee and slippage must be non-negative")
	}
	if !c.Trading.Paper && (c.Bybit.APIKey == "" || c.Bybit.APISecret == "") {
		return fmt.Errorf("config: live mode requires BYBIT_API_KEY and BYBIT_API_SECRET")
	}
	return nil
}

// BuildSelector constructs the strategy set from the configured params.
func (c *Config) BuildSelector() *strategy.Selector {
	return strategy.NewSelector(
		strategy.NewTrendFollowing(c.Strategies.TrendFollowing),
		strategy.NewMeanReversion(c.Strategies.MeanReversion),
		strategy.NewBreakout(c.Strategies.Breakout),
	)
}
