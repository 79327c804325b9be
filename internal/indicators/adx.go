package indicators

import (
	"math"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// ADX returns the Wilder average directional index for the latest bar.
// ADX is direction-agnostic: mirroring a price series around a pivot
// swaps +DM and -DM but leaves the index unchanged.
func ADX(candles []types.Candle, period int) (float64, error) {
	if err := validate(len(candles), 2*period+1); err != nil {
		return 0, err
	}

	n := len(candles)
	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	tr := TrueRanges(candles)

	for i := 1; i < n; i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	smooth := func(vals []float64) []float64 {
		out := make([]float64, len(vals)-period+1)
		sum := 0.0
		for _, v := range vals[:period] {
			sum += v
		}
		out[0] = sum
		for i := period; i < len(vals); i++ {
			out[i-period+1] = out[i-period] - out[i-period]/float64(period) + vals[i]
		}
		return out
	}

	sTR := smooth(tr)
	sPlus := smooth(plusDM)
	sMinus := smooth(minusDM)

	dx := make([]float64, len(sTR))
	for i := range sTR {
		if sTR[i] == 0 {
			continue
		}
		pDI := 100 * sPlus[i] / sTR[i]
		mDI := 100 * sMinus[i] / sTR[i]
		if pDI+mDI == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(pDI-mDI) / (pDI + mDI)
	}

	// ADX is a Wilder moving average of DX
	adx := 0.0
	for _, v := range dx[:period] {
		adx += v
	}
	adx /= float64(period)
	for i := period; i < len(dx); i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
	}
	return adx, nil
}
