package validation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/backtest"
	"github.com/duchoang612/crypto-regime-bot/pkg/config"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// OverfittingRisk grades how much out-of-sample performance degrades
// relative to in-sample.
type OverfittingRisk string

const (
	RiskLow      OverfittingRisk = "LOW"
	RiskModerate OverfittingRisk = "MODERATE"
	RiskHigh     OverfittingRisk = "HIGH"
)

// FoldResult pairs one fold's in-sample and out-of-sample runs.
type FoldResult struct {
	Index int `json:"index"`

	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`

	TrainReturn float64 `json:"train_return"`
	TestReturn  float64 `json:"test_return"`

	TrainTrades int `json:"train_trades"`
	TestTrades  int `json:"test_trades"`
}

// Summary aggregates a walk-forward evaluation.
type Summary struct {
	Folds []FoldResult `json:"folds"`

	AvgTrainReturn float64 `json:"avg_train_return"`
	AvgTestReturn  float64 `json:"avg_test_return"`
	// ReturnDegradation is (train - test) / |train|: the fraction of
	// in-sample return lost out of sample.
	ReturnDegradation float64 `json:"return_degradation"`
	// ConsistencyScore is the fraction of folds with a profitable test
	// window.
	ConsistencyScore float64         `json:"consistency_score"`
	OverfittingRisk  OverfittingRisk `json:"overfitting_risk"`
	Robust           bool            `json:"robust"`
}

// Config tunes the fold layout and robustness threshold.
type Config struct {
	TrainDays int `json:"train_days"`
	TestDays  int `json:"test_days"`
	RollDays  int `json:"roll_days"`
	// MaxDegradation is the largest acceptable ReturnDegradation for a
	// configuration to be considered robust.
	MaxDegradation float64 `json:"max_degradation"`
}

// DefaultConfig returns the standard fold layout.
func DefaultConfig() Config {
	return Config{TrainDays: 30, TestDays: 10, RollDays: 10, MaxDegradation: 0.30}
}

// Run replays every fold's train and test windows with the identical
// configuration and summarizes generalization. The candles must cover
// enough history for at least one fold.
func Run(ctx context.Context, cfg *config.Config, vcfg Config, symbol string, candles []types.Candle) (*Summary, error) {
	folds := CreateRollingFolds(candles, vcfg.TrainDays, vcfg.TestDays, vcfg.RollDays)
	if len(folds) == 0 {
		return nil, fmt.Errorf("validation: not enough data for a single fold (%d candles)", len(candles))
	}

	engine := backtest.NewEngine(cfg)
	summary := &Summary{}
	profitable := 0
	warmup := cfg.Features.MinBars() * cfg.Trading.HigherTFMultiple

	for i, fold := range folds {
		// folds too short to warm up the higher timeframe carry no
		// information; skip them rather than failing the evaluation
		if len(fold.Train) <= warmup || len(fold.Test) <= warmup {
			continue
		}
		trainRes, err := engine.Run(ctx, symbol, fold.Train)
		if err != nil {
			return nil, fmt.Errorf("validation: fold %d train: %w", i, err)
		}
		testRes, err := engine.Run(ctx, symbol, fold.Test)
		if err != nil {
			return nil, fmt.Errorf("validation: fold %d test: %w", i, err)
		}

		summary.Folds = append(summary.Folds, FoldResult{
			Index:       i,
			TrainStart:  fold.TrainStart,
			TrainEnd:    fold.TrainEnd,
			TestStart:   fold.TestStart,
			TestEnd:     fold.TestEnd,
			TrainReturn: trainRes.TotalReturn,
			TestReturn:  testRes.TotalReturn,
			TrainTrades: trainRes.ClosedTrades,
			TestTrades:  testRes.ClosedTrades,
		})
		summary.AvgTrainReturn += trainRes.TotalReturn
		summary.AvgTestReturn += testRes.TotalReturn
		if testRes.TotalReturn > 0 {
			profitable++
		}
	}

	if len(summary.Folds) == 0 {
		return nil, fmt.Errorf("validation: every fold was too short for feature warmup")
	}

	n := float64(len(summary.Folds))
	summary.AvgTrainReturn /= n
	summary.AvgTestReturn /= n
	summary.ConsistencyScore = float64(profitable) / n

	if summary.AvgTrainReturn != 0 {
		summary.ReturnDegradation = (summary.AvgTrainReturn - summary.AvgTestReturn) /
			math.Abs(summary.AvgTrainReturn)
	}

	switch {
	case summary.ReturnDegradation > 2*vcfg.MaxDegradation:
		summary.OverfittingRisk = RiskHigh
	case summary.ReturnDegradation > vcfg.MaxDegradation:
		summary.OverfittingRisk = RiskModerate
	default:
		summary.OverfittingRisk = RiskLow
	}
	summary.Robust = summary.ReturnDegradation <= vcfg.MaxDegradation && summary.AvgTestReturn > 0

	return summary, nil
}
