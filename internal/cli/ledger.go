package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List accepted envelope ids in the replay ledger",
	RunE:  runLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		records, err := svc.ReplayRecords()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("Replay ledger is empty.")
			return nil
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].ProcessedAt.Before(records[j].ProcessedAt)
		})
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ENVELOPE\tPROCESSED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\n", r.EnvelopeID, r.ProcessedAt.Format("2006-01-02 15:04:05 MST"))
		}
		return w.Flush()
	})
}
