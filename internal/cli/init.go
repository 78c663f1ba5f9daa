package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a new station identity",
	Long: `Generate signing and encryption key pairs for this station and
print the recovery mnemonic.

The mnemonic is shown exactly once. Write it down and store it with the
controlled-substance paperwork; anyone holding it can recreate the
station's keys.

Examples:
  stationctl init --id pharmacy-3 --name "Pharmacy, Floor 3"
  stationctl init --id pharmacy-3 --name "Pharmacy, Floor 3" --force`,
	RunE: runInit,
}

var (
	initID    string
	initName  string
	initForce bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initID, "id", "", "station identifier (required)")
	initCmd.Flags().StringVar(&initName, "name", "", "human-readable station name")
	initCmd.Flags().BoolVar(&initForce, "force", false,
		"replace an existing identity (existing trust relationships break)")
	initCmd.MarkFlagRequired("id")
}

func runInit(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		info, mnemonic, err := svc.InitStation(initID, initName, initForce)
		if err != nil {
			return err
		}
		fmt.Printf("Station %s initialized in %s\n", info.StationID, cfg.Station.DataDir)
		fmt.Printf("Fingerprint: %s\n\n", info.Fingerprint)
		fmt.Println("Recovery mnemonic (shown once, store it offline):")
		fmt.Printf("\n  %s\n\n", mnemonic)
		return nil
	})
}
