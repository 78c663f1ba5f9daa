package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mr-tron/base58/base58"
	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show this station's identity",
	RunE:  runInfo,
}

var infoJSON bool

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "emit machine-readable JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		info, err := svc.Info()
		if err != nil {
			return err
		}
		if infoJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Printf("Station ID:   %s\n", info.StationID)
		if info.StationName != "" {
			fmt.Printf("Name:         %s\n", info.StationName)
		}
		fmt.Printf("Fingerprint:  %s\n", info.Fingerprint)
		fmt.Printf("Signing key:  %s\n", base58.Encode(info.SigningKey))
		fmt.Printf("Encrypt key:  %s\n", base58.Encode(info.EncryptKey))
		fmt.Printf("Created:      %s\n", info.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("Data dir:     %s\n", cfg.Station.DataDir)
		return nil
	})
}
