package indicators

import "math"

// BollingerResult holds the three Bollinger Band levels for the latest bar.
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes Bollinger Bands over the closes using a population
// standard deviation, the convention used by most charting platforms.
func Bollinger(closes []float64, period int, mult float64) (BollingerResult, error) {
	if err := validate(len(closes), period); err != nil {
		return BollingerResult{}, err
	}
	window := closes[len(closes)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))

	return BollingerResult{
		Upper:  mean + mult*std,
		Middle: mean,
		Lower:  mean - mult*std,
	}, nil
}
