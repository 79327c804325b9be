package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/duchoang612/crypto-regime-bot/internal/backtest"
	"github.com/duchoang612/crypto-regime-bot/pkg/config"
	"github.com/duchoang612/crypto-regime-bot/pkg/data"
	"github.com/duchoang612/crypto-regime-bot/pkg/reporting"
	"github.com/duchoang612/crypto-regime-bot/pkg/validation"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file (JSON); defaults apply when omitted")
		dataFile    = flag.String("data", "", "Candle CSV file (timestamp,open,high,low,close,volume)")
		symbol      = flag.String("symbol", "BTCUSDT", "Symbol the data belongs to")
		walkForward = flag.Bool("walk-forward", false, "Run rolling walk-forward validation instead of a single replay")
		trainDays   = flag.Int("train-days", 30, "Walk-forward training window in days")
		testDays    = flag.Int("test-days", 10, "Walk-forward test window in days")
		rollDays    = flag.Int("roll-days", 10, "Walk-forward roll step in days")
		csvOut      = flag.String("csv", "", "Write the trade list to this CSV file")
		excelOut    = flag.String("excel", "", "Write a results workbook to this Excel file")
	)
	flag.Parse()

	if *dataFile == "" {
		log.Fatal("Please specify a data file with -data flag")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	candles, err := data.NewCSVProvider().Load(*dataFile)
	if err != nil {
		log.Fatalf("Data error: %v", err)
	}
	fmt.Printf("Loaded %d candles for %s (%s to %s)\n", len(candles), *symbol,
		candles[0].Timestamp.Format("2006-01-02"), candles[len(candles)-1].Timestamp.Format("2006-01-02"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *walkForward {
		vcfg := validation.DefaultConfig()
		vcfg.TrainDays = *trainDays
		vcfg.TestDays = *testDays
		vcfg.RollDays = *rollDays

		summary, err := validation.Run(ctx, cfg, vcfg, *symbol, candles)
		if err != nil {
			log.Fatalf("Walk-forward error: %v", err)
		}
		reporting.PrintWalkForward(summary)
		if !summary.Robust {
			os.Exit(1)
		}
		return
	}

	res, err := backtest.NewEngine(cfg).Run(ctx, *symbol, candles)
	if err != nil {
		log.Fatalf("Backtest error: %v", err)
	}
	reporting.PrintResults(res)

	if *csvOut != "" {
		if err := reporting.WriteTradesCSV(res, *csvOut); err != nil {
			log.Fatalf("CSV export error: %v", err)
		}
		fmt.Printf("Trades written to %s\n", *csvOut)
	}
	if *excelOut != "" {
		if err := reporting.WriteResultsXLSX(res, *excelOut); err != nil {
			log.Fatalf("Excel export error: %v", err)
		}
		fmt.Printf("Workbook written to %s\n", *excelOut)
	}
}
