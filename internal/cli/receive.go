package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var receiveCmd = &cobra.Command{
	Use:   "receive <envelope-file>",
	Short: "Verify an incoming envelope and extract its payload",
	Long: `Verify an envelope carried in from a peer station. The payload is
released only after the sender's trust, the replay ledger, the
signature, and the decryption all check out; any failure leaves the
ledger untouched.

Each envelope can be received exactly once.

Examples:
  stationctl receive transfer.env
  stationctl receive transfer.env --out items.json`,
	Args: cobra.ExactArgs(1),
	RunE: runReceive,
}

var receiveOut string

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVar(&receiveOut, "out", "",
		"write the payload data to a file instead of stdout")
}

func runReceive(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		payload, prov, err := svc.ImportEnvelopeFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Accepted %s envelope from %s (sent %s)\n",
			payload.DataType, prov.SenderID,
			prov.Timestamp.Format("2006-01-02 15:04:05 MST"))

		data := append([]byte(nil), payload.Data...)
		data = append(data, '\n')
		if receiveOut == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(receiveOut, data, 0o644); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Payload written to %s\n", receiveOut)
		return nil
	})
}
