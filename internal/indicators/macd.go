package indicators

// MACDResult holds the MACD line, its signal line and the histogram for
// the latest bar plus the previous bar's histogram (used for momentum
// flip detection).
type MACDResult struct {
	MACD     float64
	Signal   float64
	Hist     float64
	PrevHist float64
}

// MACD computes the moving average convergence divergence of the closes.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if fast >= slow {
		return MACDResult{}, ErrInvalidPeriod
	}
	if err := validate(len(closes), slow+signal); err != nil {
		return MACDResult{}, err
	}

	fastEMA, err := EMASeries(closes, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowEMA, err := EMASeries(closes, slow)
	if err != nil {
		return MACDResult{}, err
	}

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	// the MACD line is only meaningful once the slow EMA is live
	signalSeries, err := EMASeries(macdLine[slow-1:], signal)
	if err != nil {
		return MACDResult{}, err
	}

	n := len(closes) - 1
	s := len(signalSeries) - 1
	res := MACDResult{
		MACD:   macdLine[n],
		Signal: signalSeries[s],
		Hist:   macdLine[n] - signalSeries[s],
	}
	if s > 0 {
		res.PrevHist = macdLine[n-1] - signalSeries[s-1]
	}
	return res, nil
}
