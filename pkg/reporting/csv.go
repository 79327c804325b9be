package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/duchoang612/crypto-regime-bot/internal/backtest"
)

// WriteTradesCSV writes the trade list to a CSV file.
func WriteTradesCSV(res *backtest.Results, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("reporting: create directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("reporting: create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"time", "symbol", "reason", "quantity", "price", "pnl", "full"}); err != nil {
		return err
	}
	for _, t := range res.Trades {
		record := []string{
			t.Time.Format(time.RFC3339),
			t.Symbol,
			t.Reason,
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.PnL, 'f', -1, 64),
			strconv.FormatBool(t.Full),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
