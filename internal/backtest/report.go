package backtest

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/yourusername/prop-edge/internal/models"
)

// WriteReport renders a human-readable summary of a run to w.
func WriteReport(w io.Writer, result *models.BacktestResult) {
	fmt.Fprintf(w, "\nBacktest %s\n", result.ID)
	fmt.Fprintf(w, "Window: %s to %s\n\n",
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))

	summary := tablewriter.NewWriter(w)
	summary.Header("Metric", "Value")
	summary.Append("Initial Bankroll", fmt.Sprintf("%.2f", result.InitialBankroll))
	summary.Append("Final Bankroll", fmt.Sprintf("%.2f", result.FinalBankroll))
	summary.Append("Profit/Loss", fmt.Sprintf("%+.2f", result.ProfitLoss))
	summary.Append("ROI", fmt.Sprintf("%.2f%%", result.ROI))
	summary.Append("Total Bets", fmt.Sprintf("%d", result.TotalBets))
	summary.Append("Win Rate", fmt.Sprintf("%.1f%%", result.WinRate*100))
	summary.Append("Max Drawdown", fmt.Sprintf("%.2f%%", result.MaxDrawdown*100))
	summary.Append("Sharpe Ratio", fmt.Sprintf("%.3f", result.SharpeRatio))
	summary.Append("Optimal Kelly", fmt.Sprintf("%.4f", result.OptimalKelly))
	summary.Append("VaR (95%)", fmt.Sprintf("%.2f", result.ValueAtRisk95))
	summary.Append("Expected Shortfall", fmt.Sprintf("%.2f", result.ExpectedShortfall))
	summary.Render()

	if len(result.ByModel) > 0 {
		fmt.Fprintln(w, "\nBy model:")
		writeBreakdowns(w, result.ByModel)
	}
	if len(result.ByPropType) > 0 {
		fmt.Fprintln(w, "\nBy prop type:")
		writeBreakdowns(w, result.ByPropType)
	}

	if result.StoppedEarly {
		fmt.Fprintf(w, "\nRun stopped early: %s\n", result.StopReason)
	}
	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(w, "\n%d diagnostics recorded:\n", len(result.Diagnostics))
		diag := tablewriter.NewWriter(w)
		diag.Header("Date", "Kind", "Candidate", "Message")
		for _, d := range result.Diagnostics {
			diag.Append(d.Date, string(d.Kind), d.CandidateID, d.Message)
		}
		diag.Render()
	}
}

func writeBreakdowns(w io.Writer, breakdowns map[string]*models.Breakdown) {
	keys := make([]string, 0, len(breakdowns))
	for k := range breakdowns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.Header("Key", "Bets", "Wins", "Stake", "P/L")
	for _, k := range keys {
		b := breakdowns[k]
		table.Append(k,
			fmt.Sprintf("%d", b.Bets),
			fmt.Sprintf("%d", b.WinningBets),
			fmt.Sprintf("%.2f", b.TotalStake),
			fmt.Sprintf("%+.2f", b.ProfitLoss),
		)
	}
	table.Render()
}

// ExportJSON writes the full result, including the equity curve and
// diagnostics, to path.
func ExportJSON(path string, result *models.BacktestResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(result.ToJSON()); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
