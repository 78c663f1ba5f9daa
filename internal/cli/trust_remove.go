package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var trustRemoveCmd = &cobra.Command{
	Use:   "remove <station-id>",
	Short: "Revoke trust in a peer station",
	Long: `Remove a station from the trust registry. Envelopes signed by the
removed station are rejected from the next import on.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrustRemove,
}

func init() {
	trustCmd.AddCommand(trustRemoveCmd)
}

func runTrustRemove(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		if err := svc.RemoveTrust(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s from the trust registry\n", args[0])
		return nil
	})
}
