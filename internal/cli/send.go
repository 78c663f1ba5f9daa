package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Build a sealed envelope for a trusted station",
	Long: `Encrypt and sign a payload for a peer station and write the
envelope file to carry over on removable media.

The payload file must contain a JSON document. The recipient must
already be in the trust registry.

Examples:
  stationctl send --to clinic-1 --type INVENTORY_TRANSFER --in items.json --out transfer.env`,
	RunE: runSend,
}

var (
	sendTo   string
	sendType string
	sendIn   string
	sendOut  string
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient station id (required)")
	sendCmd.Flags().StringVar(&sendType, "type", "", "payload data type, e.g. INVENTORY_TRANSFER (required)")
	sendCmd.Flags().StringVar(&sendIn, "in", "", "payload JSON file, '-' for stdin (required)")
	sendCmd.Flags().StringVar(&sendOut, "out", "", "envelope output file (required)")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("type")
	sendCmd.MarkFlagRequired("in")
	sendCmd.MarkFlagRequired("out")
}

func runSend(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if sendIn == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(sendIn)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("payload is not valid JSON")
	}

	return withService(func(cfg config.Config, svc *station.Service) error {
		env, err := svc.ExportEnvelope(sendTo, sendType, data, sendOut)
		if err != nil {
			return err
		}
		fmt.Printf("Envelope %s for %s written to %s\n", env.EnvelopeID, sendTo, sendOut)
		return nil
	})
}
