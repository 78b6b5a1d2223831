// Package cli wires the developer tooling: a local collection sink and a
// scenario replay driver for exercising the client pipeline end to end.
package cli

import (
	"github.com/spf13/cobra"
)

var Version string

var (
	flagSiteID  string
	flagAPIHost string
	flagDataDir string
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:   "seentics",
	Short: "Seentics client tooling",
	Long: `Seentics - analytics client tooling.

The seentics binary bundles a local development collector (sink) and a
scenario replay driver for the embeddable tracking client. Production use
of the client goes through the library API, not this binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute is called by main
func Execute(version string) error {
	Version = version
	RootCmd.Version = version
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flagSiteID, "site-id", "", "site identifier (overrides config)")
	RootCmd.PersistentFlags().StringVar(&flagAPIHost, "api-host", "", "collection API host (overrides config)")
	RootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "client state directory (overrides config)")

	RootCmd.AddCommand(sinkCmd)
	RootCmd.AddCommand(replayCmd)
}
