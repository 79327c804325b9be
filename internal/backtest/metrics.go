package backtest

import (
	"math"
	"time"
)

// finalize derives the summary statistics once the run is complete.
func (r *Results) finalize(barInterval time.Duration) {
	if r.InitialBalance > 0 {
		r.TotalReturn = (r.FinalBalance - r.InitialBalance) / r.InitialBalance
	}
	if r.ClosedTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.ClosedTrades)
	}

	grossWin, grossLoss := 0.0, 0.0
	for _, t := range r.Trades {
		if t.PnL > 0 {
			grossWin += t.PnL
		} else {
			grossLoss -= t.PnL
		}
	}
	switch {
	case grossLoss > 0:
		r.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		r.ProfitFactor = math.Inf(1)
	}

	r.MaxDrawdown = maxDrawdown(r.EquityCurve)
	r.Sharpe = sharpe(r.EquityCurve, barInterval)
}

func maxDrawdown(curve []EquityPoint) float64 {
	peak, maxDD := 0.0, 0.0
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpe is the annualized mean/stddev of per-bar returns with a zero
// risk-free rate.
func sharpe(curve []EquityPoint, barInterval time.Duration) float64 {
	if len(curve) < 2 || barInterval <= 0 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Value <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Value-curve[i-1].Value)/curve[i-1].Value)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, v := range returns {
		mean += v
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, v := range returns {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}

	barsPerYear := float64(365*24*time.Hour) / float64(barInterval)
	return mean / math.Sqrt(variance) * math.Sqrt(barsPerYear)
}
