package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/duchoang612/crypto-regime-bot/internal/backtest"
)

// WriteResultsXLSX writes a two-sheet Excel workbook: a summary sheet and
// the full trade list.
func WriteResultsXLSX(res *backtest.Results, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("reporting: create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const summarySheet = "Summary"
	const tradesSheet = "Trades"
	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	if err := writeSummarySheet(fx, summarySheet, res, headerStyle); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, tradesSheet, res, headerStyle); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func writeSummarySheet(fx *excelize.File, sheet string, res *backtest.Results, headerStyle int) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Symbol", res.Symbol},
		{"Start", res.StartTime.Format("2006-01-02 15:04")},
		{"End", res.EndTime.Format("2006-01-02 15:04")},
		{"Initial Balance", res.InitialBalance},
		{"Final Balance", res.FinalBalance},
		{"Total Return %", res.TotalReturn * 100},
		{"Max Drawdown %", res.MaxDrawdown * 100},
		{"Sharpe", res.Sharpe},
		{"Closed Trades", res.ClosedTrades},
		{"Winning Trades", res.WinningTrades},
		{"Losing Trades", res.LosingTrades},
		{"Win Rate %", res.WinRate * 100},
		{"Profit Factor", res.ProfitFactor},
		{"Fees Paid", res.FeesPaid},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(sheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "A", "B", 22)
}

func writeTradesSheet(fx *excelize.File, sheet string, res *backtest.Results, headerStyle int) error {
	header := []interface{}{"Time", "Symbol", "Reason", "Quantity", "Price", "PnL", "Full Close"}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "G1", headerStyle); err != nil {
		return err
	}

	for i, t := range res.Trades {
		row := []interface{}{
			t.Time.Format("2006-01-02 15:04"),
			t.Symbol,
			t.Reason,
			t.Quantity,
			t.Price,
			t.PnL,
			t.Full,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return fx.SetColWidth(sheet, "A", "G", 16)
}
