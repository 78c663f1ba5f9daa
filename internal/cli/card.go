package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Export this station's signed identity card",
	Long: `Export the station card: the public keys, fingerprint, and a
self-signature, as a JSON file to hand to peer stations.

Always confirm the fingerprint with the operator over an independent
channel (phone, printed label) before the peer imports the card.

Examples:
  stationctl card
  stationctl card --out pharmacy-3.card`,
	RunE: runCard,
}

var cardOut string

func init() {
	rootCmd.AddCommand(cardCmd)

	cardCmd.Flags().StringVar(&cardOut, "out", "", "write the card to a file instead of stdout")
}

func runCard(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		card, err := svc.Card()
		if err != nil {
			return err
		}
		raw, err := json.MarshalIndent(card, "", "  ")
		if err != nil {
			return err
		}
		raw = append(raw, '\n')
		if cardOut == "" {
			_, err = os.Stdout.Write(raw)
			return err
		}
		if err := os.WriteFile(cardOut, raw, 0o644); err != nil {
			return fmt.Errorf("write card: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Card written to %s (fingerprint %s)\n", cardOut, card.Fingerprint)
		return nil
	})
}
