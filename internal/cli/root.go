// Package cli implements the stationctl command tree. Every subcommand
// opens the station service against the configured data directory, runs a
// single operation, and exits; stations never hold the ledger open between
// invocations.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"medirelay/go-station/internal/config"
	"medirelay/go-station/internal/envelope"
	"medirelay/go-station/internal/keystore"
	"medirelay/go-station/internal/ledger"
	"medirelay/go-station/internal/platform/redactlog"
	"medirelay/go-station/internal/station"
)

var (
	cfgFile string
	dataDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "stationctl",
	Short: "Manage an offline medical-inventory exchange station",
	Long: `stationctl provisions a station identity, maintains the trust
registry, and builds and verifies sealed inventory envelopes carried
between stations on removable media.

Private keys never leave the station data directory. Set ` + config.EnvPassphrase + `
to keep them sealed at rest.

Examples:
  stationctl init --id pharmacy-3 --name "Pharmacy, Floor 3"
  stationctl card --out pharmacy-3.card
  stationctl trust add clinic-1.card --fingerprint 4f:9a:...
  stationctl send --to clinic-1 --type INVENTORY_TRANSFER --in items.json --out transfer.env
  stationctl receive transfer.env`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.medirelay/config.yaml, if present)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"station data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.Station.DataDir = dataDir
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(redactlog.Wrap(h))
}

// withService opens the keystore and replay ledger, runs fn, and releases
// the ledger lock afterwards.
func withService(fn func(cfg config.Config, svc *station.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	keys, err := keystore.Open(cfg.Station.DataDir, os.Getenv(config.EnvPassphrase))
	if err != nil {
		return fmt.Errorf("open keystore: %w", err)
	}
	led, err := ledger.OpenBadger(cfg.LedgerDir())
	if err != nil {
		return fmt.Errorf("open replay ledger: %w", err)
	}
	svc := station.New(keys, led, station.Options{
		Window: envelope.Window{
			Past:   cfg.Exchange.ReplayWindow,
			Future: cfg.Exchange.FutureSkew,
		},
		Retention: time.Duration(cfg.Exchange.PruneMultiplier) * cfg.Exchange.ReplayWindow,
		Logger:    newLogger(),
	})
	defer svc.Close()
	return fn(cfg, svc)
}
