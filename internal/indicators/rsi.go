package indicators

// RSI returns the Wilder relative strength index of the closes.
// A flat series (no losses and no gains) reports the neutral midpoint 50
// rather than the conventional 100, so direction-symmetric callers see a
// symmetric value.
func RSI(closes []float64, period int) (float64, error) {
	if err := validate(len(closes), period+1); err != nil {
		return 0, err
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgGain == 0 && avgLoss == 0 {
		return 50, nil
	}
	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}
