package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// SimConfig is the deterministic fill model shared by paper trading and
// replay: a fixed fee per side and a fixed adverse slippage per fill.
type SimConfig struct {
	FeeRate      float64 `json:"fee_rate"`
	SlippageRate float64 `json:"slippage_rate"`
}

// DefaultSimConfig returns taker-fee and slippage defaults typical for
// liquid perpetual futures.
func DefaultSimConfig() SimConfig {
	return SimConfig{FeeRate: 0.0004, SlippageRate: 0.0005}
}

// Sim is a deterministic in-process execution venue. Identical order
// sequences always produce identical fills, which is what makes replay
// reproducible.
type Sim struct {
	cfg SimConfig

	candles map[string][]types.Candle
	clock   time.Time
}

// NewSim returns a simulator with the given fill model.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{cfg: cfg, candles: make(map[string][]types.Candle)}
}

func (s *Sim) Name() string { return "sim" }

// SetCandles installs the candle window GetCandles serves for a symbol.
// The replay driver advances it bar by bar.
func (s *Sim) SetCandles(symbol string, candles []types.Candle) {
	s.candles[symbol] = candles
}

// SetClock sets the timestamp stamped on fills.
func (s *Sim) SetClock(t time.Time) { s.clock = t }

func (s *Sim) GetCandles(_ context.Context, symbol, _ string, limit int) ([]types.Candle, error) {
	c, ok := s.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("sim: no candles for %s", symbol)
	}
	if limit > 0 && len(c) > limit {
		c = c[len(c)-limit:]
	}
	return c, nil
}

// GetBalance is not meaningful for the simulator: portfolio state is
// authoritative in simulated modes.
func (s *Sim) GetBalance(context.Context) (float64, error) {
	return 0, fmt.Errorf("sim: balance is tracked by the portfolio")
}

// PlaceMarketOrder fills at the reference price moved adversely by the
// slippage rate, charging the fee on the filled notional.
func (s *Sim) PlaceMarketOrder(_ context.Context, req OrderRequest) (*Fill, error) {
	if req.Quantity <= 0 || req.Price <= 0 {
		return nil, fmt.Errorf("%w: invalid order %+v", ErrTerminal, req)
	}
	price := req.Price
	if req.Side == types.DirectionLong {
		price *= 1 + s.cfg.SlippageRate
	} else {
		price *= 1 - s.cfg.SlippageRate
	}
	return &Fill{
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     price,
		Fee:       price * req.Quantity * s.cfg.FeeRate,
		Timestamp: s.clock,
	}, nil
}

// GetOpenPositions returns nothing: the simulator holds no state, so
// reconciliation in simulated modes is a no-op.
func (s *Sim) GetOpenPositions(context.Context) ([]RemotePosition, error) {
	return nil, nil
}
