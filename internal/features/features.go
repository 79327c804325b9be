// Package features turns a trailing candle window into the named numeric
// feature vector consumed by the regime classifier, the strategies and the
// filter chain. Computation is pure: identical candle history produces an
// identical vector, which is what makes replay decisions reproducible.
package features

import (
	"fmt"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/indicators"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// Vector is the feature set computed at one bar close.
type Vector struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`

	PrevOpen  float64 `json:"prev_open"`
	PrevClose float64 `json:"prev_close"`

	EMAFast  float64 `json:"ema_fast"`
	EMASlow  float64 `json:"ema_slow"`
	EMATrend float64 `json:"ema_trend"`

	RSI float64 `json:"rsi"`

	MACD         float64 `json:"macd"`
	MACDSignal   float64 `json:"macd_signal"`
	MACDHist     float64 `json:"macd_hist"`
	MACDHistPrev float64 `json:"macd_hist_prev"`

	BBUpper  float64 `json:"bb_upper"`
	BBMiddle float64 `json:"bb_middle"`
	BBLower  float64 `json:"bb_lower"`

	ATR    float64 `json:"atr"`
	ATRSMA float64 `json:"atr_sma"`
	ADX    float64 `json:"adx"`

	OBV      float64 `json:"obv"`
	OBVSlope float64 `json:"obv_slope"`

	VolumeSMA float64 `json:"volume_sma"`

	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Snapshot bundles the vectors for the primary timeframe and its higher
// confirmation timeframe at one evaluation instant.
type Snapshot struct {
	Symbol    string
	Timestamp time.Time
	Primary   Vector
	Higher    Vector
}

// Config holds the indicator periods. Zero values are filled by
// DefaultConfig; the set mirrors common charting defaults.
type Config struct {
	EMAFastPeriod  int     `json:"ema_fast_period"`
	EMASlowPeriod  int     `json:"ema_slow_period"`
	EMATrendPeriod int     `json:"ema_trend_period"`
	RSIPeriod      int     `json:"rsi_period"`
	MACDFast       int     `json:"macd_fast"`
	MACDSlow       int     `json:"macd_slow"`
	MACDSignal     int     `json:"macd_signal"`
	BBPeriod       int     `json:"bb_period"`
	BBStdDev       float64 `json:"bb_std_dev"`
	ATRPeriod      int     `json:"atr_period"`
	ATRSMAPeriod   int     `json:"atr_sma_period"`
	ADXPeriod      int     `json:"adx_period"`
	VolumeSMA      int     `json:"volume_sma_period"`
	LevelLookback  int     `json:"level_lookback"`
	OBVSlopeBars   int     `json:"obv_slope_bars"`
}

// DefaultConfig returns the standard periods.
func DefaultConfig() Config {
	return Config{
		EMAFastPeriod:  9,
		EMASlowPeriod:  21,
		EMATrendPeriod: 50,
		RSIPeriod:      14,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		BBPeriod:       20,
		BBStdDev:       2.0,
		ATRPeriod:      14,
		ATRSMAPeriod:   20,
		ADXPeriod:      14,
		VolumeSMA:      20,
		LevelLookback:  20,
		OBVSlopeBars:   5,
	}
}

// MinBars is the shortest candle history the provider accepts. Anything
// shorter returns indicators.ErrInsufficientData and the caller must treat
// the bar as non-tradeable.
func (c Config) MinBars() int {
	min := c.EMATrendPeriod
	if n := c.MACDSlow + c.MACDSignal; n > min {
		min = n
	}
	if n := 2*c.ADXPeriod + 1; n > min {
		min = n
	}
	if n := c.ATRPeriod + c.ATRSMAPeriod; n > min {
		min = n
	}
	return min + 1
}

// Provider computes feature vectors from candle windows.
type Provider struct {
	cfg Config
}

// NewProvider returns a provider using the given periods.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Compute derives the feature vector from the trailing candle window. The
// last candle in the slice is the bar being evaluated.
func (p *Provider) Compute(candles []types.Candle) (Vector, error) {
	cfg := p.cfg
	if len(candles) < cfg.MinBars() {
		return Vector{}, fmt.Errorf("features: %d bars, need %d: %w",
			len(candles), cfg.MinBars(), indicators.ErrInsufficientData)
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	v := Vector{
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Close:     last.Close,
		Volume:    last.Volume,
		PrevOpen:  prev.Open,
		PrevClose: prev.Close,
	}

	var err error
	if v.EMAFast, err = indicators.EMA(closes, cfg.EMAFastPeriod); err != nil {
		return Vector{}, err
	}
	if v.EMASlow, err = indicators.EMA(closes, cfg.EMASlowPeriod); err != nil {
		return Vector{}, err
	}
	if v.EMATrend, err = indicators.EMA(closes, cfg.EMATrendPeriod); err != nil {
		return Vector{}, err
	}
	if v.RSI, err = indicators.RSI(closes, cfg.RSIPeriod); err != nil {
		return Vector{}, err
	}

	macd, err := indicators.MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	if err != nil {
		return Vector{}, err
	}
	v.MACD = macd.MACD
	v.MACDSignal = macd.Signal
	v.MACDHist = macd.Hist
	v.MACDHistPrev = macd.PrevHist

	bb, err := indicators.Bollinger(closes, cfg.BBPeriod, cfg.BBStdDev)
	if err != nil {
		return Vector{}, err
	}
	v.BBUpper = bb.Upper
	v.BBMiddle = bb.Middle
	v.BBLower = bb.Lower

	atrSeries, err := indicators.ATRSeries(candles, cfg.ATRPeriod)
	if err != nil {
		return Vector{}, err
	}
	v.ATR = atrSeries[len(atrSeries)-1]
	if v.ATRSMA, err = indicators.SMA(atrSeries, cfg.ATRSMAPeriod); err != nil {
		return Vector{}, err
	}

	if v.ADX, err = indicators.ADX(candles, cfg.ADXPeriod); err != nil {
		return Vector{}, err
	}

	obv, err := indicators.OBVSeries(candles)
	if err != nil {
		return Vector{}, err
	}
	v.OBV = obv[len(obv)-1]
	if len(obv) > cfg.OBVSlopeBars {
		v.OBVSlope = obv[len(obv)-1] - obv[len(obv)-1-cfg.OBVSlopeBars]
	}

	if v.VolumeSMA, err = indicators.SMA(volumes, cfg.VolumeSMA); err != nil {
		return Vector{}, err
	}

	lv, err := indicators.SupportResistance(candles, cfg.LevelLookback)
	if err != nil {
		return Vector{}, err
	}
	v.Support = lv.Support
	v.Resistance = lv.Resistance

	return v, nil
}

// Snapshot computes primary and higher timeframe vectors in one call.
func (p *Provider) Snapshot(symbol string, primary, higher []types.Candle) (*Snapshot, error) {
	pv, err := p.Compute(primary)
	if err != nil {
		return nil, fmt.Errorf("primary timeframe: %w", err)
	}
	hv, err := p.Compute(higher)
	if err != nil {
		return nil, fmt.Errorf("higher timeframe: %w", err)
	}
	return &Snapshot{
		Symbol:    symbol,
		Timestamp: primary[len(primary)-1].Timestamp,
		Primary:   pv,
		Higher:    hv,
	}, nil
}
