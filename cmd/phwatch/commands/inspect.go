package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/phwatch/internal/contracts"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [contract]",
	Short: "Inspect one snapshot: depth, trades and data quality",
	Long: `Print the point-in-time metrics of one contract snapshot together with
its data quality report. Without a contract, list the live board.

Example:
  go run ./cmd/phwatch inspect
  go run ./cmd/phwatch inspect PH25112123
  go run ./cmd/phwatch inspect PH25112123 --minute 2025-11-21T14:05:00+03:00`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

var inspectMinute string

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectMinute, "minute", "", "snapshot minute (RFC3339, default latest)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if len(args) == 0 {
		overview := a.service.Overview(ctx)
		if jsonOutput {
			return printJSON(overview)
		}
		if overview.Error != "" {
			return fmt.Errorf("read board: %s", overview.Error)
		}
		fmt.Printf("Live board (%d contracts)\n", len(overview.ActiveContracts))
		PrintList(overview.ActiveContracts)
		return nil
	}

	var minute time.Time
	if inspectMinute != "" {
		minute, err = contracts.ParseTimestamp(inspectMinute)
		if err != nil {
			return fmt.Errorf("invalid --minute: %w", err)
		}
	}

	view, err := a.service.SnapshotMetrics(ctx, args[0], minute)
	if errors.Is(err, contracts.ErrNotFound) {
		PrintWarning(err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(view)
	}
	if view.Error != "" {
		return fmt.Errorf("fetch snapshot: %s", view.Error)
	}

	PrintDoubleSeparator()
	fmt.Printf("  %s @ %s\n", view.Contract, view.SnapshotMinute.Format("2006-01-02 15:04 MST"))
	PrintSeparator()
	PrintKeyValue("MCP", formatOptional(view.MCP, 2), 18)
	PrintKeyValue("Average price", formatOptional(view.AveragePrice, 2), 18)
	PrintKeyValue("Remaining", formatSeconds(view.RemainingSeconds), 18)
	PrintKeyValue("Best bid / ask", formatOptional(view.BestBid, 2)+" / "+formatOptional(view.BestAsk, 2), 18)
	PrintKeyValue("Spread", formatOptional(view.Spread, 2), 18)
	PrintKeyValue("Imbalance", formatOptional(view.Imbalance, 3), 18)
	PrintKeyValue(fmt.Sprintf("VWAP (last %.0f)", view.TargetVolume), formatOptional(view.RecentPrice, 2), 18)
	PrintKeyValue("Δ vs MCP", formatOptional(view.ChangeVsSettlement, 2), 18)
	PrintKeyValue("Depth levels", fmt.Sprintf("%d bid / %d ask", len(view.BidCurve), len(view.AskCurve)), 18)
	PrintKeyValue("Trades", fmt.Sprintf("%d", view.Trades), 18)
	PrintSeparator()

	if q := view.Quality; q != nil {
		fmt.Printf("Quality score %.2f\n", q.Score)
		for key, cov := range q.Coverage {
			PrintKeyValue(key, fmt.Sprintf("%.0f%%", cov*100), 18)
		}
		if q.Passed {
			PrintSuccess("Snapshot passed the quality gate")
		} else {
			PrintError("Snapshot failed the quality gate")
		}
		PrintList(q.Issues)
	}
	return nil
}
