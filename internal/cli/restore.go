package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Recreate a station identity from its recovery mnemonic",
	Long: `Recreate the station key pairs from a recovery mnemonic.

The mnemonic is read from stdin so it never appears in shell history.

Examples:
  stationctl restore --id pharmacy-3 --name "Pharmacy, Floor 3" < mnemonic.txt`,
	RunE: runRestore,
}

var (
	restoreID    string
	restoreName  string
	restoreForce bool
)

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVar(&restoreID, "id", "", "station identifier (required)")
	restoreCmd.Flags().StringVar(&restoreName, "name", "", "human-readable station name")
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false,
		"replace an existing identity")
	restoreCmd.MarkFlagRequired("id")
}

func runRestore(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(os.Stderr, "Enter recovery mnemonic:")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read mnemonic: %w", err)
	}
	mnemonic := strings.TrimSpace(line)
	if mnemonic == "" {
		return fmt.Errorf("empty mnemonic")
	}

	return withService(func(cfg config.Config, svc *station.Service) error {
		info, err := svc.RestoreStation(mnemonic, restoreID, restoreName, restoreForce)
		if err != nil {
			return err
		}
		fmt.Printf("Station %s restored in %s\n", info.StationID, cfg.Station.DataDir)
		fmt.Printf("Fingerprint: %s\n", info.Fingerprint)
		return nil
	})
}
