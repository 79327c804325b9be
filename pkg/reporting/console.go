// Package reporting renders replay and walk-forward results to the
// console, CSV and Excel.
package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/duchoang612/crypto-regime-bot/internal/backtest"
	"github.com/duchoang612/crypto-regime-bot/pkg/validation"
)

// PrintResults renders a replay summary table to stdout.
func PrintResults(res *backtest.Results) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("BACKTEST RESULTS: %s", res.Symbol)
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s → %s",
			res.StartTime.Format("2006-01-02"), res.EndTime.Format("2006-01-02"))},
		{"Initial Balance", fmt.Sprintf("%.2f", res.InitialBalance)},
		{"Final Balance", fmt.Sprintf("%.2f", res.FinalBalance)},
		{"Total Return", fmt.Sprintf("%.2f%%", res.TotalReturn*100)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", res.MaxDrawdown*100)},
		{"Sharpe", fmt.Sprintf("%.2f", res.Sharpe)},
		{"Closed Trades", res.ClosedTrades},
		{"Win Rate", fmt.Sprintf("%.1f%%", res.WinRate*100)},
		{"Profit Factor", fmt.Sprintf("%.2f", res.ProfitFactor)},
		{"Fees Paid", fmt.Sprintf("%.2f", res.FeesPaid)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 26, Align: text.AlignLeft},
	})
	t.Render()

	if len(res.RegimeBars) > 0 {
		rt := table.NewWriter()
		rt.SetOutputMirror(os.Stdout)
		rt.SetTitle("BARS PER REGIME")
		rt.SetStyle(table.StyleLight)
		rt.AppendHeader(table.Row{"Regime", "Bars"})
		for _, name := range []string{"TRENDING_STRONG", "TRENDING_WEAK", "RANGING", "VOLATILE"} {
			if n, ok := res.RegimeBars[name]; ok {
				rt.AppendRow(table.Row{name, n})
			}
		}
		rt.Render()
	}

	if len(res.Rejections) > 0 {
		jt := table.NewWriter()
		jt.SetOutputMirror(os.Stdout)
		jt.SetTitle("RISK REJECTIONS")
		jt.SetStyle(table.StyleLight)
		jt.AppendHeader(table.Row{"Reason", "Count"})
		for reason, n := range res.Rejections {
			jt.AppendRow(table.Row{reason, n})
		}
		jt.SortBy([]table.SortBy{{Number: 2, Mode: table.DscNumeric}})
		jt.Render()
	}
}

// PrintWalkForward renders the fold table and verdict to stdout.
func PrintWalkForward(summary *validation.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("WALK-FORWARD VALIDATION")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Fold", "Train Window", "Train Ret", "Test Window", "Test Ret", "Test Trades"})

	for _, f := range summary.Folds {
		t.AppendRow(table.Row{
			f.Index,
			fmt.Sprintf("%s→%s", f.TrainStart.Format("01-02"), f.TrainEnd.Format("01-02")),
			fmt.Sprintf("%.2f%%", f.TrainReturn*100),
			fmt.Sprintf("%s→%s", f.TestStart.Format("01-02"), f.TestEnd.Format("01-02")),
			fmt.Sprintf("%.2f%%", f.TestReturn*100),
			f.TestTrades,
		})
	}
	t.AppendFooter(table.Row{"", "avg",
		fmt.Sprintf("%.2f%%", summary.AvgTrainReturn*100), "avg",
		fmt.Sprintf("%.2f%%", summary.AvgTestReturn*100), ""})
	t.Render()

	fmt.Printf("Return degradation: %.1f%%  consistency: %.0f%%  overfitting risk: %s  robust: %v\n",
		summary.ReturnDegradation*100, summary.ConsistencyScore*100,
		summary.OverfittingRisk, summary.Robust)
}
