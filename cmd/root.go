// Package cmd implements the command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/national-treasure/internal/config"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "national-treasure",
	Short: "Adaptive web archival engine",
	Long: `national-treasure captures web pages through a real browser,
learns per-domain which browser configuration works best, and runs all
work through a durable retry-aware job queue.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
}

// loadConfig loads configuration and builds the logger.
func loadConfig() (*config.Config, logger.Interface, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
