package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var mnemonicCmd = &cobra.Command{
	Use:   "mnemonic",
	Short: "Re-export the recovery mnemonic",
	Long: `Print the recovery mnemonic again. Only available when the key
material is sealed under a passphrase; on unprotected stations the seed
is discarded after init and cannot be re-exported.`,
	RunE: runMnemonic,
}

func init() {
	rootCmd.AddCommand(mnemonicCmd)
}

func runMnemonic(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		mnemonic, err := svc.ExportMnemonic()
		if err != nil {
			return err
		}
		fmt.Println(mnemonic)
		return nil
	})
}
