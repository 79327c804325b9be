// Package bot runs the live evaluation loop: one full pass over all
// symbols per bar interval, cooperative stop between symbols, periodic
// reconciliation against the exchange, and per-symbol error isolation so
// one failing feed never blocks the rest of the pass.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/adaptive"
	"github.com/duchoang612/crypto-regime-bot/internal/exchange"
	"github.com/duchoang612/crypto-regime-bot/internal/features"
	"github.com/duchoang612/crypto-regime-bot/internal/filter"
	"github.com/duchoang612/crypto-regime-bot/internal/journal"
	"github.com/duchoang612/crypto-regime-bot/internal/lifecycle"
	"github.com/duchoang612/crypto-regime-bot/internal/logger"
	"github.com/duchoang612/crypto-regime-bot/internal/monitoring"
	"github.com/duchoang612/crypto-regime-bot/internal/notify"
	"github.com/duchoang612/crypto-regime-bot/internal/portfolio"
	"github.com/duchoang612/crypto-regime-bot/internal/regime"
	"github.com/duchoang612/crypto-regime-bot/internal/risk"
	"github.com/duchoang612/crypto-regime-bot/internal/trader"
	"github.com/duchoang612/crypto-regime-bot/pkg/config"
	"github.com/duchoang612/crypto-regime-bot/pkg/types"
)

// Bot owns the live loop.
type Bot struct {
	cfg      *config.Config
	log      *logger.Logger
	journal  *journal.Writer
	notifier *notify.Telegram

	market exchange.Exchange // candle and funding source
	broker exchange.Exchange // order execution
	engine *trader.Engine
	sim    *exchange.Sim // non-nil in paper mode

	passes int
}

// New builds the bot. In paper mode orders go to the simulator while
// market data still comes from the venue.
func New(cfg *config.Config, log *logger.Logger, jw *journal.Writer) *Bot {
	bybit := exchange.NewBybit(cfg.Bybit)
	b := &Bot{
		cfg:      cfg,
		log:      log,
		journal:  jw,
		notifier: notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID),
		market:   bybit,
		broker:   bybit,
	}
	if cfg.Trading.Paper {
		b.sim = exchange.NewSim(cfg.Sim)
		b.broker = b.sim
	}
	return b
}

// Run executes the loop until ctx is cancelled. The first pass runs
// immediately; subsequent passes follow the bar interval.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.setup(ctx); err != nil {
		return err
	}
	b.log.Status("bot started: symbols=%v interval=%dm paper=%v",
		b.cfg.Trading.Symbols, b.cfg.Trading.IntervalMinutes, b.cfg.Trading.Paper)
	b.notify(ctx, fmt.Sprintf("bot started (%v, paper=%v)", b.cfg.Trading.Symbols, b.cfg.Trading.Paper))

	ticker := time.NewTicker(b.cfg.Trading.Interval())
	defer ticker.Stop()

	b.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			b.log.Status("bot stopping: %v", ctx.Err())
			b.notify(context.Background(), "bot stopped")
			return nil
		case <-ticker.C:
			b.pass(ctx)
		}
	}
}

// setup resolves the starting balance, wires the pipeline and adopts any
// positions already open on the exchange.
func (b *Bot) setup(ctx context.Context) error {
	now := time.Now().UTC()
	balance := b.cfg.Trading.InitialBalance
	if !b.cfg.Trading.Paper {
		var v float64
		err := exchange.WithRetry(ctx, b.cfg.Retry, func() error {
			var err error
			v, err = b.broker.GetBalance(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("bot: fetch starting balance: %w", err)
		}
		balance = v
	}

	selector := b.cfg.BuildSelector()
	controller := adaptive.NewController(b.cfg.Adaptive)
	b.engine = trader.NewEngine(b.cfg.Trader, trader.Deps{
		Features:   features.NewProvider(b.cfg.Features),
		Classifier: regime.NewClassifier(b.cfg.Regime),
		Selector:   selector,
		Chain:      filter.DefaultChain(b.cfg.Filters),
		Validator:  risk.NewValidator(b.cfg.Risk, b.cfg.Trading.Interval(), selector, controller),
		Controller: controller,
		Lifecycle:  lifecycle.NewManager(b.cfg.Lifecycle),
		Portfolio:  portfolio.New(balance, now),
		Broker:     b.broker,
		Journal:    b.journal,
		Log:        b.log,
	})

	if !b.cfg.Trading.Paper {
		if err := b.engine.Reconcile(ctx, now); err != nil {
			return fmt.Errorf("bot: initial reconciliation: %w", err)
		}
	}
	return nil
}

// pass runs one full evaluation across all symbols.
func (b *Bot) pass(ctx context.Context) {
	started := time.Now()
	now := started.UTC()
	b.passes++
	if b.sim != nil {
		b.sim.SetClock(now)
	}
	b.engine.BeginPass(now)

	for _, symbol := range b.cfg.Trading.Symbols {
		// cooperative stop, checked between symbols so no position is
		// ever left half-evaluated
		if ctx.Err() != nil {
			return
		}
		if err := b.evaluateSymbol(ctx, symbol); err != nil {
			b.log.Error("symbol %s: %v", symbol, err)
		}
	}

	b.engine.Snapshot(now)
	monitoring.ObserveTick(time.Since(started))

	if !b.cfg.Trading.Paper && b.cfg.Trading.ReconcileEvery > 0 &&
		b.passes%b.cfg.Trading.ReconcileEvery == 0 {
		if err := b.engine.Reconcile(ctx, now); err != nil {
			b.log.Error("reconciliation: %v", err)
		}
	}
}

func (b *Bot) evaluateSymbol(ctx context.Context, symbol string) error {
	primary, err := b.fetchCandles(ctx, symbol, b.cfg.Trading.KlineInterval(), b.cfg.Trading.WindowBars+1)
	if err != nil {
		return fmt.Errorf("fetch primary candles: %w", err)
	}
	higherInterval := fmt.Sprintf("%d", b.cfg.Trading.IntervalMinutes*b.cfg.Trading.HigherTFMultiple)
	higher, err := b.fetchCandles(ctx, symbol, higherInterval, b.cfg.Features.MinBars()+1)
	if err != nil {
		return fmt.Errorf("fetch higher candles: %w", err)
	}

	// the newest kline is still forming; decisions use closed bars only
	primary = dropForming(primary)
	higher = dropForming(higher)

	extras := trader.MarketExtras{}
	if fp, ok := b.market.(exchange.FundingProvider); ok {
		if rate, err := fp.GetFundingRate(ctx, symbol); err == nil {
			extras.FundingRate = rate
			extras.HasFunding = true
		}
	}

	res, err := b.engine.ProcessBar(ctx, symbol, primary, higher, extras)
	if res != nil {
		b.announce(ctx, res)
	}
	return err
}

func (b *Bot) fetchCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	var candles []types.Candle
	err := exchange.WithRetry(ctx, b.cfg.Retry, func() error {
		var err error
		candles, err = b.market.GetCandles(ctx, symbol, interval, limit)
		return err
	})
	return candles, err
}

func dropForming(candles []types.Candle) []types.Candle {
	if len(candles) < 2 {
		return candles
	}
	return candles[:len(candles)-1]
}

func (b *Bot) announce(ctx context.Context, res *trader.Result) {
	for _, c := range res.Closes {
		b.notify(ctx, fmt.Sprintf("CLOSE %s qty=%.6f @ %.4f pnl=%.4f (%s)",
			c.Symbol, c.Quantity, c.Price, c.PnL, c.Reason))
	}
	if res.Opened != nil {
		p := res.Opened
		b.notify(ctx, fmt.Sprintf("OPEN %s %s qty=%.6f @ %.4f stop=%.4f target=%.4f",
			p.Symbol, p.Direction, p.Quantity, p.EntryPrice, p.StopPrice, p.TakeProfit))
	}
}

func (b *Bot) notify(ctx context.Context, msg string) {
	if err := b.notifier.Send(ctx, msg); err != nil {
		b.log.Warn("notification failed: %v", err)
	}
}
