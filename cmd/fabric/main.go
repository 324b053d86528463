package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/monoco-io/fabric/pkg/config"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgPath string
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fabric",
	Short: "Fabric - event-driven workspace automation",
	Long: `Fabric watches a workspace for issue, memo, and task changes,
routes the resulting events to actions, stores artifacts in a
content-addressable store, and runs the Courier message exchange
that connects chat providers to agent sessions.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})
		metrics.SetVersion(Version)
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Fabric version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "fabric.yaml", "path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(courierCmd)
	rootCmd.AddCommand(artifactCmd)
	rootCmd.AddCommand(watchCmd)
}
