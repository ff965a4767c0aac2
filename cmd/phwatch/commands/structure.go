package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// structureCmd represents the structure command
var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Build and print the market structure index",
	Long: `Page recent (contract, minute) pairs and print the most recent trading
dates with their contracts.

Example:
  go run ./cmd/phwatch structure
  go run ./cmd/phwatch structure --json`,
	RunE: runStructure,
}

var structureTimeout time.Duration

func init() {
	rootCmd.AddCommand(structureCmd)
	structureCmd.Flags().DurationVar(&structureTimeout, "timeout", 2*time.Minute, "abort the scan after this long")
}

func runStructure(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), structureTimeout)
	defer cancel()

	start := time.Now()
	structure := a.service.RefreshStructure(ctx)
	if jsonOutput {
		return printJSON(structure)
	}

	cfg := a.service.Config().Structure
	PrintDoubleSeparator()
	fmt.Println("  Market Structure")
	PrintSeparator()
	PrintKeyValue("Max dates", fmt.Sprintf("%d", cfg.MaxDates), 12)
	PrintKeyValue("Batches", fmt.Sprintf("%d × %d rows", structure.BatchesFetched, cfg.BatchSize), 12)
	PrintKeyValue("Rows", fmt.Sprintf("%d", structure.RowsScanned), 12)
	PrintKeyValue("Elapsed", time.Since(start).Round(time.Millisecond).String(), 12)
	PrintSeparator()

	if len(structure.Dates) == 0 {
		PrintWarning("No parseable contracts found")
		return nil
	}

	for _, date := range structure.Dates {
		ids := structure.Contracts[date]
		fmt.Printf("📅 %s (%d contracts)\n", date, len(ids))
		fmt.Printf("   %s\n", strings.Join(ids, ", "))
	}
	PrintSuccess(fmt.Sprintf("%d dates, %d contracts", len(structure.Dates), structure.ContractCount()))
	return nil
}
