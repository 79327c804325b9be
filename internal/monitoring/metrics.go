// Package monitoring exposes Prometheus metrics for the evaluation loop.
// The collectors are package-level, registered once via promauto, and
// served on a dedicated HTTP listener.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_decisions_total",
		Help: "Evaluation decisions by symbol and outcome",
	}, []string{"symbol", "outcome"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_rejections_total",
		Help: "Risk validator rejections by reason",
	}, []string{"reason"})

	tradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_trades_total",
		Help: "Executed trades by symbol, side and event",
	}, []string{"symbol", "side", "event"})

	regimeGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bot_market_regime",
		Help: "Current regime per symbol (0 ranging, 1 trending strong, 2 trending weak, 3 volatile)",
	}, []string{"symbol"})

	portfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_portfolio_value",
		Help: "Marked portfolio value",
	})

	openPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_open_positions",
		Help: "Number of open positions",
	})

	strategyConfidence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bot_strategy_confidence",
		Help: "Latest post-filter confidence per strategy",
	}, []string{"strategy"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_errors_total",
		Help: "Errors by category",
	}, []string{"category"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bot_tick_duration_seconds",
		Help:    "Full evaluation pass duration",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordDecision counts one evaluation outcome.
func RecordDecision(symbol, outcome string) {
	decisionsTotal.WithLabelValues(symbol, outcome).Inc()
}

// RecordRejection counts a risk rejection by reason.
func RecordRejection(reason string) {
	rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordTrade counts an executed trade event.
func RecordTrade(symbol, side, event string) {
	tradesTotal.WithLabelValues(symbol, side, event).Inc()
}

// SetRegime publishes the symbol's regime code.
func SetRegime(symbol string, code int) {
	regimeGauge.WithLabelValues(symbol).Set(float64(code))
}

// SetPortfolio publishes the marked value and open-position count.
func SetPortfolio(value float64, positions int) {
	portfolioValue.Set(value)
	openPositions.Set(float64(positions))
}

// SetStrategyConfidence publishes the latest confidence for a strategy.
func SetStrategyConfidence(strategy string, confidence float64) {
	strategyConfidence.WithLabelValues(strategy).Set(confidence)
}

// RecordError counts an error by category.
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}

// ObserveTick records an evaluation pass duration.
func ObserveTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// Serve runs the /metrics endpoint until ctx is cancelled.
func Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("monitoring: metrics server: %w", err)
	}
	return nil
}
