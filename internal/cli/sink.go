package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seentics/seentics-go/internal/config"
	"github.com/seentics/seentics-go/internal/sink"
)

var (
	flagSinkPort     string
	flagSinkFixtures string
)

var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Run a local collection sink",
	Long: `Run a local collection sink.

The sink implements every endpoint the client pipeline talks to and keeps
what it receives in memory. Point a client's APIHost at it and inspect the
intake via /debug/stats and /debug/events.

A fixtures file (YAML) supplies the goals, funnels, and workflows the sink
serves back to clients.

Example:
  seentics sink --port 8090 --fixtures ./fixtures.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		port := flagSinkPort
		if port == "" {
			port = cfg.Port
		}

		fixtures, err := sink.LoadFixtures(flagSinkFixtures)
		if err != nil {
			return fmt.Errorf("load fixtures: %w", err)
		}

		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		return sink.New(fixtures, logger).Listen(port)
	},
}

func init() {
	sinkCmd.Flags().StringVar(&flagSinkPort, "port", "", "listen port (default from config, 8090)")
	sinkCmd.Flags().StringVar(&flagSinkFixtures, "fixtures", "", "YAML fixtures file with goals, funnels, and workflows")
}
