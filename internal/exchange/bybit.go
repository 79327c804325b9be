package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// BybitConfig selects the Bybit environment and account.
type BybitConfig struct {
	APIKey    string `json:"-"`
	APISecret string `json:"-"`
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
	// SettleCoin is the margin asset balance queries report, USDT by
	// default.
	SettleCoin string `json:"settle_coin"`
}

// Bybit adapts the Bybit v5 unified trading API to the Exchange
// interface. All derivatives calls use the linear (USDT-perpetual)
// category.
type Bybit struct {
	client *bybit_api.Client
	cfg    BybitConfig
}

// NewBybit builds the adapter. Demo selects the paper-trading
// environment, Testnet the public testnet; otherwise mainnet.
func NewBybit(cfg BybitConfig) *Bybit {
	baseURL := bybit_api.MAINNET
	if cfg.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if cfg.Testnet {
		baseURL = bybit_api.TESTNET
	}
	if cfg.SettleCoin == "" {
		cfg.SettleCoin = "USDT"
	}
	return &Bybit{
		client: bybit_api.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybit_api.WithBaseURL(baseURL)),
		cfg:    cfg,
	}
}

func (b *Bybit) Name() string { return "bybit" }

// result unwraps a v5 envelope and decodes its Result payload into out.
func result(response interface{}, out interface{}) error {
	resp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("bybit: unexpected response type %T", response)
	}
	if resp.RetCode != 0 {
		return fmt.Errorf("bybit: api error %d: %s", resp.RetCode, resp.RetMsg)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("bybit: marshal result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bybit: decode result: %w", err)
	}
	return nil
}

func f64(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// GetCandles returns up to limit closed candles, oldest first.
func (b *Bybit) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	resp, err := b.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": "linear",
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("bybit: get klines for %s: %w", symbol, err)
	}

	var kr struct {
		List [][]string `json:"list"`
	}
	if err := result(resp, &kr); err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(kr.List))
	for _, item := range kr.List {
		if len(item) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(item[0], 10, 64)
		if err != nil {
			continue
		}
		candles = append(candles, types.Candle{
			Timestamp: time.UnixMilli(ms),
			Open:      f64(item[1]),
			High:      f64(item[2]),
			Low:       f64(item[3]),
			Close:     f64(item[4]),
			Volume:    f64(item[5]),
		})
	}
	// the API returns newest first
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// GetBalance returns the settle coin's wallet balance on the unified
// account.
func (b *Bybit) GetBalance(ctx context.Context) (float64, error) {
	resp, err := b.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        b.cfg.SettleCoin,
	}).GetAccountWallet(ctx)
	if err != nil {
		return 0, fmt.Errorf("bybit: get wallet: %w", err)
	}

	var wr struct {
		List []struct {
			Coin []struct {
				Coin          string `json:"coin"`
				WalletBalance string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := result(resp, &wr); err != nil {
		return 0, err
	}
	for _, acct := range wr.List {
		for _, c := range acct.Coin {
			if c.Coin == b.cfg.SettleCoin {
				return f64(c.WalletBalance), nil
			}
		}
	}
	return 0, fmt.Errorf("bybit: %s balance not found", b.cfg.SettleCoin)
}

// PlaceMarketOrder submits a market order and reports the fill from the
// order acknowledgement plus the decision price; exact fills arrive via
// execution history, which reconciliation covers.
func (b *Bybit) PlaceMarketOrder(ctx context.Context, req OrderRequest) (*Fill, error) {
	side := "Buy"
	if req.Side == types.DirectionShort {
		side = "Sell"
	}
	params := map[string]interface{}{
		"category":  "linear",
		"symbol":    req.Symbol,
		"side":      side,
		"orderType": "Market",
		"qty":       strconv.FormatFloat(req.Quantity, 'f', -1, 64),
	}
	if req.Reduce {
		params["reduceOnly"] = true
	}

	resp, err := b.client.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("bybit: place order for %s: %w", req.Symbol, err)
	}
	var or struct {
		OrderID string `json:"orderId"`
	}
	if err := result(resp, &or); err != nil {
		return nil, err
	}
	if or.OrderID == "" {
		return nil, fmt.Errorf("%w: order for %s not acknowledged", ErrTerminal, req.Symbol)
	}
	return &Fill{
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     req.Price,
		Timestamp: time.Now().UTC(),
	}, nil
}

// GetOpenPositions lists the account's open linear positions.
func (b *Bybit) GetOpenPositions(ctx context.Context) ([]RemotePosition, error) {
	resp, err := b.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category":   "linear",
		"settleCoin": b.cfg.SettleCoin,
	}).GetPositionList(ctx)
	if err != nil {
		return nil, fmt.Errorf("bybit: get positions: %w", err)
	}

	var pr struct {
		List []struct {
			Symbol     string `json:"symbol"`
			Side       string `json:"side"`
			Size       string `json:"size"`
			EntryPrice string `json:"entryPrice"`
			Leverage   string `json:"leverage"`
		} `json:"list"`
	}
	if err := result(resp, &pr); err != nil {
		return nil, err
	}

	var out []RemotePosition
	for _, p := range pr.List {
		size := f64(p.Size)
		if size <= 0 {
			continue
		}
		dir := types.DirectionLong
		if p.Side == "Sell" {
			dir = types.DirectionShort
		}
		out = append(out, RemotePosition{
			Symbol:     p.Symbol,
			Direction:  dir,
			Quantity:   size,
			EntryPrice: f64(p.EntryPrice),
			Leverage:   f64(p.Leverage),
		})
	}
	return out, nil
}

// GetFundingRate returns the current funding rate for the symbol.
func (b *Bybit) GetFundingRate(ctx context.Context, symbol string) (float64, error) {
	resp, err := b.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": "linear",
		"symbol":   symbol,
	}).GetMarketTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("bybit: get ticker for %s: %w", symbol, err)
	}

	var tr struct {
		List []struct {
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	}
	if err := result(resp, &tr); err != nil {
		return 0, err
	}
	if len(tr.List) == 0 {
		return 0, fmt.Errorf("bybit: no ticker for %s", symbol)
	}
	return f64(tr.List[0].FundingRate), nil
}
