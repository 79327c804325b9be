package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

func hourlyCandles(days int) []types.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.Candle, days*24)
	for i := range out {
		out[i] = types.Candle{Timestamp: start.Add(time.Duration(i) * time.Hour), Close: 100}
	}
	return out
}

func TestSplitByRatio(t *testing.T) {
	candles := hourlyCandles(10)

	train, test := SplitByRatio(candles, 0.7)
	assert.Len(t, train, 168)
	assert.Len(t, test, 72)
	assert.True(t, train[len(train)-1].Timestamp.Before(test[0].Timestamp))

	// degenerate ratios keep everything in train
	train, test = SplitByRatio(candles, 0)
	assert.Len(t, train, len(candles))
	assert.Nil(t, test)

	train, test = SplitByRatio(candles, 1.5)
	assert.Len(t, train, len(candles))
	assert.Nil(t, test)
}

// TestCreateRollingFolds_WindowLayout pins the fold boundaries for a
// 30-day series split 10 train / 5 test rolled by 5
func TestCreateRollingFolds_WindowLayout(t *testing.T) {
	candles := hourlyCandles(30)

	folds := CreateRollingFolds(candles, 10, 5, 5)
	require.Len(t, folds, 4) // starts at day 0, 5, 10, 15

	first := folds[0]
	assert.Len(t, first.Train, 240)
	assert.Len(t, first.Test, 120)
	assert.Equal(t, candles[0].Timestamp, first.TrainStart)
	assert.Equal(t, candles[240].Timestamp, first.TestStart)

	// consecutive folds step forward by the roll window
	assert.Equal(t, candles[120].Timestamp, folds[1].TrainStart)

	// every test window begins right after its train window
	for _, f := range folds {
		assert.True(t, f.TrainEnd.Before(f.TestStart))
	}
}

func TestCreateRollingFolds_TooLittleData(t *testing.T) {
	assert.Empty(t, CreateRollingFolds(hourlyCandles(1), 10, 5, 5))
	assert.Empty(t, CreateRollingFolds(nil, 10, 5, 5))
}

// TestCreateRollingFolds_PartialTailDropped never emits a fold whose
// test window ran out of data
func TestCreateRollingFolds_PartialTailDropped(t *testing.T) {
	candles := hourlyCandles(12) // room for train but only a sliver of test

	folds := CreateRollingFolds(candles, 10, 5, 5)
	require.Len(t, folds, 1)
	assert.Len(t, folds[0].Train, 240)
	assert.Len(t, folds[0].Test, 48) // whatever remained past day 10
}
