package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check store and cache connectivity",
	Long: `Ping every backend and print the live overview summary.

Example:
  go run ./cmd/phwatch status
  go run ./cmd/phwatch status --watch 5s`,
	RunE: runStatus,
}

var statusWatch time.Duration

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().DurationVar(&statusWatch, "watch", 0, "refresh interval (0 prints once)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	printOnce := func() error {
		ctx := cmd.Context()
		status := a.service.Status(ctx)
		overview := a.service.Overview(ctx)
		if jsonOutput {
			return printJSON(map[string]interface{}{"status": status, "overview": overview})
		}

		PrintDoubleSeparator()
		fmt.Printf("  phwatch status @ %s\n", status.CheckedAt.Format("2006-01-02 15:04:05 MST"))
		PrintSeparator()

		names := make([]string, 0, len(status.Components))
		for name := range status.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := status.Components[name]
			if c.Connected {
				PrintSuccess(fmt.Sprintf("%-9s Connected", name))
			} else {
				PrintError(fmt.Sprintf("%-9s Disconnected (%s)", name, c.Error))
			}
		}
		PrintKeyValue("Breaker", a.stores.Guard.State().String(), 14)
		PrintSeparator()

		if overview.Error != "" {
			PrintError("Board: " + overview.Error)
			return nil
		}
		PrintKeyValue("Active", fmt.Sprintf("%d", len(overview.ActiveContracts)), 14)
		PrintKeyValue("With signals", fmt.Sprintf("%d", len(overview.Rows)), 14)
		PrintKeyValue("Alerts", fmt.Sprintf("%d", len(overview.Alerts)), 14)
		if overview.LatestMinute != nil {
			PrintKeyValue("Latest minute", overview.LatestMinute.Format("2006-01-02 15:04 MST"), 14)
		}
		for _, row := range overview.Alerts {
			fmt.Printf("   🔔 %s %s (%s)\n", row.Contract, formatSignal(row.TradeSignal), formatOptional(row.TimeSignal, 3))
		}
		return nil
	}

	if statusWatch <= 0 {
		return printOnce()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(statusWatch)
	defer ticker.Stop()

	for {
		if err := printOnce(); err != nil {
			return err
		}
		select {
		case <-quit:
			return nil
		case <-ticker.C:
		}
	}
}
