// Package exchange is the execution collaborator boundary: candle and
// balance queries, market orders, and the open-position listing used for
// reconciliation. Live trading talks to Bybit; paper trading and replay
// use the deterministic simulator.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// ErrTerminal marks execution failures that retrying cannot fix
// (insufficient balance, invalid symbol). The caller abandons the
// symbol's cycle instead of retrying.
var ErrTerminal = errors.New("terminal execution error")

// OrderRequest is a market order. Price is the decision-time reference
// price; the simulator fills against it, live venues fill at market.
type OrderRequest struct {
	Symbol string
	// Side is the order side, not the position side: closing a long is a
	// DirectionShort order with Reduce set.
	Side     types.Direction
	Quantity float64
	Price    float64
	Reduce   bool
}

// Fill is the result of an executed order.
type Fill struct {
	Symbol    string
	Side      types.Direction
	Quantity  float64
	Price     float64
	Fee       float64
	Timestamp time.Time
}

// RemotePosition is an open position as the venue reports it, used to
// reconcile internal state against exchange truth.
type RemotePosition struct {
	Symbol     string
	Direction  types.Direction
	Quantity   float64
	EntryPrice float64
	Leverage   float64
}

// Exchange is the execution surface the trading engine depends on.
type Exchange interface {
	Name() string
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	GetBalance(ctx context.Context) (float64, error)
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (*Fill, error)
	GetOpenPositions(ctx context.Context) ([]RemotePosition, error)
}

// FundingProvider is implemented by venues that expose funding rates for
// the crowding filter. Optional: callers type-assert.
type FundingProvider interface {
	GetFundingRate(ctx context.Context, symbol string) (float64, error)
}
