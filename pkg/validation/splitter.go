// Package validation estimates out-of-sample generalization with rolling
// walk-forward folds: replay the same configuration on paired
// train/test windows and compare in-sample to out-of-sample returns.
package validation

import (
	"time"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// Fold is one rolling train/test pair.
type Fold struct {
	Train []types.Candle
	Test  []types.Candle

	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// SplitByRatio cuts the series into a leading train slice and trailing
// test slice. Ratios outside (0,1) return the whole series as train.
func SplitByRatio(candles []types.Candle, ratio float64) ([]types.Candle, []types.Candle) {
	if ratio <= 0 || ratio >= 1 {
		return candles, nil
	}
	n := int(float64(len(candles)) * ratio)
	if n < 1 || n >= len(candles) {
		return candles, nil
	}
	return candles[:n], candles[n:]
}

// CreateRollingFolds partitions the timeline into rolling train/test
// pairs stepped forward by rollDays. Folds without a meaningful amount
// of data in both windows are dropped.
func CreateRollingFolds(candles []types.Candle, trainDays, testDays, rollDays int) []Fold {
	const (
		minTrainBars = 50
		minTestBars  = 10
	)
	var folds []Fold
	if len(candles) < minTrainBars+minTestBars {
		return folds
	}

	trainDur := time.Duration(trainDays) * 24 * time.Hour
	testDur := time.Duration(testDays) * 24 * time.Hour
	rollDur := time.Duration(rollDays) * 24 * time.Hour

	start := 0
	for {
		trainEndTs := candles[start].Timestamp.Add(trainDur)
		trainEnd := start
		for trainEnd < len(candles) && candles[trainEnd].Timestamp.Before(trainEndTs) {
			trainEnd++
		}

		testEndTs := trainEndTs.Add(testDur)
		testEnd := trainEnd
		for testEnd < len(candles) && candles[testEnd].Timestamp.Before(testEndTs) {
			testEnd++
		}

		if trainEnd-start < minTrainBars || testEnd-trainEnd < minTestBars {
			break
		}

		folds = append(folds, Fold{
			Train:      candles[start:trainEnd],
			Test:       candles[trainEnd:testEnd],
			TrainStart: candles[start].Timestamp,
			TrainEnd:   candles[trainEnd-1].Timestamp,
			TestStart:  candles[trainEnd].Timestamp,
			TestEnd:    candles[testEnd-1].Timestamp,
		})

		nextStartTs := candles[start].Timestamp.Add(rollDur)
		nextStart := start
		for nextStart < len(candles) && candles[nextStart].Timestamp.Before(nextStartTs) {
			nextStart++
		}
		if nextStart <= start {
			nextStart = start + 1
		}
		if nextStart >= len(candles) {
			break
		}
		start = nextStart
	}
	return folds
}
