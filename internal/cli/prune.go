package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop replay-ledger records older than the retention period",
	Long: `Remove ledger records old enough that the replay window alone
rejects their envelopes. Retention is the replay window times the
configured prune multiplier, so pruning never opens a replay gap.`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		removed, err := svc.PruneLedger(time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d ledger record(s)\n", removed)
		return nil
	})
}
