package indicators

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if err := validate(len(values), period); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// EMASeries returns the exponential moving average at every index. The
// first period values are seeded with an SMA, the standard convention, so
// series of equal length always align.
func EMASeries(values []float64, period int) ([]float64, error) {
	if err := validate(len(values), period); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	// backfill the warmup region with the seed so callers indexing early
	// bars never read a zero
	for i := 0; i < period-1; i++ {
		out[i] = seed
	}
	return out, nil
}

// EMA returns the latest exponential moving average value.
func EMA(values []float64, period int) (float64, error) {
	series, err := EMASeries(values, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
