package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/station"
)

var trustListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trusted peer stations",
	RunE:  runTrustList,
}

var trustListJSON bool

func init() {
	trustCmd.AddCommand(trustListCmd)

	trustListCmd.Flags().BoolVar(&trustListJSON, "json", false, "emit machine-readable JSON")
}

func runTrustList(cmd *cobra.Command, args []string) error {
	return withService(func(cfg config.Config, svc *station.Service) error {
		stations := svc.TrustedStations()
		if trustListJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stations)
		}
		if len(stations) == 0 {
			fmt.Println("No trusted stations. Add one with 'stationctl trust add'.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATION\tNAME\tFINGERPRINT\tADDED")
		for _, s := range stations {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				s.StationID, s.StationName, s.Fingerprint,
				s.AddedAt.Format("2006-01-02"))
		}
		return w.Flush()
	})
}
