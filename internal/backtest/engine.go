// Package backtest replays historical candles through the exact live
// pipeline with a deterministic fill model. There is no replay-only
// decision logic: the trader engine is constructed the same way live
// mode constructs it, with the simulator standing in for the venue.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/adaptive"
	"github.com/duchoang612/crypto-regime-bot/internal/exchange"
	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/filter"
	"github.com/duchoang612/crypto-regime-bot/internal/lifecycle"
	"github.com/duchoang612/crypto-regime-bot/internal/portfolio"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/risk"
	"github.com/duchoang612/crypto-regime-bot/internal/trader"
	"github.com/duchoang612/crypto-regime-bot/pkg/config"
	"github.com/duchoang612/crypto-regime-bot/pkg/data"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// EquityPoint is one mark-to-market sample of portfolio value.
type EquityPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// TradeOutcome is one realized close during the replay.
type TradeOutcome struct {
	Time     time.Time `json:"time"`
	Symbol   string    `json:"symbol"`
	Reason   string    `json:"reason"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	PnL      float64   `json:"pnl"`
	Full     bool      `json:"full"`
}

// Results aggregates a replay run.
type Results struct {
	Symbol    string    `json:"symbol"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	TotalReturn    float64 `json:"total_return"` // fraction of initial
	FeesPaid       float64 `json:"fees_paid"`

	ClosedTrades  int     `json:"closed_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`

	MaxDrawdown float64 `json:"max_drawdown"`
	Sharpe      float64 `json:"sharpe"`

	Trades      []TradeOutcome `json:"trades"`
	EquityCurve []EquityPoint  `json:"equity_curve"`

	RegimeBars map[string]int `json:"regime_bars"`
	Rejections map[string]int `json:"rejections"`
}

// Engine replays one symbol's series. Each Run builds a fresh pipeline,
// so consecutive runs (and walk-forward folds) share no state.
type Engine struct {
	cfg *config.Config
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run replays the candles bar by bar. The series must be oldest-first
// with at least enough bars to warm up the higher-timeframe features.
func (e *Engine) Run(ctx context.Context, symbol string, candles []types.Candle) (*Results, error) {
	cfg := e.cfg
	warmup := cfg.Features.MinBars() * cfg.Trading.HigherTFMultiple
	if len(candles) <= warmup {
		return nil, fmt.Errorf("backtest: %d candles, need more than %d for warmup", len(candles), warmup)
	}

	sim := exchange.NewSim(cfg.Sim)
	port := portfolio.New(cfg.Trading.InitialBalance, candles[0].Timestamp)
	selector := cfg.BuildSelector()
	controller := adaptive.NewController(cfg.Adaptive)
	engine := trader.NewEngine(cfg.Trader, trader.Deps{
		Features:   features.NewProvider(cfg.Features),
		Classifier: regime.NewClassifier(cfg.Regime),
		Selector:   selector,
		Chain:      filter.DefaultChain(cfg.Filters),
		Validator:  risk.NewValidator(cfg.Risk, cfg.Trading.Interval(), selector, controller),
		Controller: controller,
		Lifecycle:  lifecycle.NewManager(cfg.Lifecycle),
		Portfolio:  port,
		Broker:     sim,
	})

	res := &Results{
		Symbol:         symbol,
		StartTime:      candles[0].Timestamp,
		EndTime:        candles[len(candles)-1].Timestamp,
		InitialBalance: cfg.Trading.InitialBalance,
		RegimeBars:     make(map[string]int),
		Rejections:     make(map[string]int),
	}

	windowBars := cfg.Trading.WindowBars
	for i := warmup; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := i + 1 - windowBars
		if start < 0 {
			start = 0
		}
		window := candles[start : i+1]
		higher := data.AggregateTrailing(window, cfg.Trading.HigherTFMultiple)
		bar := candles[i]

		sim.SetClock(bar.Timestamp)
		engine.BeginPass(bar.Timestamp)

		out, err := engine.ProcessBar(ctx, symbol, window, higher, trader.MarketExtras{})
		if err != nil {
			return nil, fmt.Errorf("backtest: bar %d (%s): %w", i, bar.Timestamp, err)
		}
		res.collect(out, bar.Timestamp)

		res.EquityCurve = append(res.EquityCurve, EquityPoint{
			Time:  bar.Timestamp,
			Value: port.TotalValue(engine.Marks()),
		})
	}

	// flatten whatever is still open at the last close
	endTime := candles[len(candles)-1].Timestamp
	closes, err := engine.CloseAll(ctx, lifecycle.ReasonEndOfReplay, endTime)
	if err != nil {
		return nil, err
	}
	for _, c := range closes {
		res.addTrade(c, endTime)
	}

	res.FinalBalance = port.TotalValue(engine.Marks())
	res.FeesPaid = port.FeesPaid()
	res.finalize(cfg.Trading.Interval())
	return res, nil
}

func (r *Results) collect(out *trader.Result, ts time.Time) {
	if out == nil {
		return
	}
	if !out.InsufficientData {
		r.RegimeBars[out.Regime.String()]++
	}
	if out.Verdict != nil && !out.Verdict.Accepted {
		r.Rejections[string(out.Verdict.Reason)]++
	}
	for _, c := range out.Closes {
		r.addTrade(c, ts)
	}
}

func (r *Results) addTrade(c trader.ClosedTrade, ts time.Time) {
	r.Trades = append(r.Trades, TradeOutcome{
		Time:     ts,
		Symbol:   c.Symbol,
		Reason:   string(c.Reason),
		Quantity: c.Quantity,
		Price:    c.Price,
		PnL:      c.PnL,
		Full:     c.Full,
	})
	r.ClosedTrades++
	if c.PnL > 0 {
		r.WinningTrades++
	} else {
		r.LosingTrades++
	}
}
