package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// timelineCmd represents the timeline command
var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print recent OPEN_LONG/OPEN_SHORT signals",
	Long: `Print the most recent trade signals across contracts with their
excess strength beyond the decision threshold.

Example:
  go run ./cmd/phwatch timeline
  go run ./cmd/phwatch timeline --limit 50`,
	RunE: runTimeline,
}

var timelineLimit int

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.Flags().IntVar(&timelineLimit, "limit", 20, "number of signals")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	timeline := a.service.Timeline(cmd.Context(), timelineLimit)
	if jsonOutput {
		return printJSON(timeline)
	}
	if timeline.Error != "" {
		return fmt.Errorf("fetch trade signals: %s", timeline.Error)
	}
	if len(timeline.Entries) == 0 {
		PrintWarning("No trade signals")
		return nil
	}

	widths := []int{17, 12, 11, 10, 8}
	PrintTableHeader([]string{"MINUTE", "CONTRACT", "SIGNAL", "TIME SIG", "EXCESS"}, widths)
	for _, e := range timeline.Entries {
		PrintTableRow([]string{
			e.SnapshotMinute.Format("2006-01-02 15:04"),
			e.Contract,
			formatSignal(e.TradeSignal),
			formatOptional(e.TimeSignal, 3),
			fmt.Sprintf("%+.3f", e.ExcessStrength),
		}, widths)
	}
	fmt.Printf("\nThreshold ±%.2f, %d signals\n", timeline.Threshold, len(timeline.Entries))
	return nil
}
