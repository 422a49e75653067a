// Package cmd defines the CLI surface of the harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/config"
	"github.com/hojonavi/hojokin-harvester/internal/logging"
)

var (
	cfgFile string
	dryRun  bool
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "A polite, resumable crawler for Japanese subsidy listings",
		Long: `harvester walks prefecture and ministry sites for subsidy (hojokin)
announcements, extracts structured records (amounts, rates, deadlines)
from Japanese prose, and persists them for downstream search.

Crawls checkpoint their full state periodically and can be resumed
after an interruption with the "resume" command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.Init(viper.GetViper(), cfgFile)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./harvester.yaml)")
	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "run extraction without persisting records")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newCheckpointsCmd())
	cmd.AddCommand(newCacheCmd())
	return cmd
}

// loadConfig builds the run configuration from viper plus CLI overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if dryRun {
		cfg.DryRun = true
	}
	return cfg, nil
}

func newLogger(development bool) (*zap.Logger, error) {
	return logging.New(development)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
