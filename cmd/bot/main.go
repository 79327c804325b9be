package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/duchoang612/crypto-regime-bot/internal/bot"
	"github.com/duchoang612/crypto-regime-bot/internal/journal"
	"github.com/duchoang612/crypto-regime-bot/internal/logger"
	"github.com/duchoang612/crypto-regime-bot/internal/monitoring"
	"github.com/duchoang612/crypto-regime-bot/pkg/config"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (JSON); defaults apply when omitted")
		envFile    = flag.String("env", ".env", "Environment file path")
		paper      = flag.Bool("paper", false, "Force paper mode regardless of config")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *paper {
		cfg.Trading.Paper = true
	}

	session := fmt.Sprintf("live_%s", time.Now().UTC().Format("20060102_150405"))
	appLog, err := logger.New(cfg.Observe.LogDir, session)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer appLog.Close()

	jw, err := journal.NewWriter(cfg.Observe.JournalDir, session)
	if err != nil {
		log.Fatalf("Journal error: %v", err)
	}
	defer jw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observe.MetricsPort > 0 {
		go func() {
			if err := monitoring.Serve(ctx, cfg.Observe.MetricsPort); err != nil {
				appLog.Error("metrics server: %v", err)
			}
		}()
	}

	fmt.Printf("Starting bot: symbols=%v interval=%dm paper=%v\n",
		cfg.Trading.Symbols, cfg.Trading.IntervalMinutes, cfg.Trading.Paper)

	if err := bot.New(cfg, appLog, jw).Run(ctx); err != nil {
		appLog.Error("bot exited: %v", err)
		log.Fatalf("Bot error: %v", err)
	}
	fmt.Println("Bot stopped.")
}
