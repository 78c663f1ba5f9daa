package cli

import (
	"github.com/spf13/cobra"
)

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage the trust registry of peer stations",
}

func init() {
	rootCmd.AddCommand(trustCmd)
}
