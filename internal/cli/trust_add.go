package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
	"medirelay/go-station/pkg/models"
)

var trustAddCmd = &cobra.Command{
	Use:   "add <card-file>",
	Short: "Trust a peer station from its identity card",
	Long: `Add a peer station to the trust registry from a card file.

Pass --fingerprint with the value the peer's operator read to you; the
import is refused if it does not match the card. Without --fingerprint
the card is accepted as-is, which is only appropriate when the file
itself arrived over a trusted channel.

Examples:
  stationctl trust add clinic-1.card --fingerprint 4f:9a:c2:...
  stationctl trust add clinic-1.card --replace`,
	Args: cobra.ExactArgs(1),
	RunE: runTrustAdd,
}

var (
	trustAddFingerprint string
	trustAddReplace     bool
)

func init() {
	trustCmd.AddCommand(trustAddCmd)

	trustAddCmd.Flags().StringVar(&trustAddFingerprint, "fingerprint", "",
		"expected fingerprint, confirmed out of band")
	trustAddCmd.Flags().BoolVar(&trustAddReplace, "replace", false,
		"replace existing keys for this station id")
}

func runTrustAdd(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read card: %w", err)
	}
	var card models.StationCard
	if err := json.Unmarshal(raw, &card); err != nil {
		return fmt.Errorf("parse card: %w", err)
	}

	return withService(func(cfg config.Config, svc *station.Service) error {
		entry, err := svc.TrustCard(card, trustAddFingerprint, trustAddReplace)
		if err != nil {
			return err
		}
		fmt.Printf("Trusted %s (%s)\n", entry.StationID, entry.Fingerprint)
		return nil
	})
}
