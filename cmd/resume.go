package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hojonavi/hojokin-harvester/internal/crawler"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume CHECKPOINT_ID",
		Short: "Resume an interrupted crawl from a checkpoint",
		Long: `resume restores the frontier, visited set, counters, and extracted
records from the named checkpoint and continues the crawl under the
configuration snapshot stored in it. Use "checkpoints list" to find ids.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Development)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts, cleanup, err := storeOptions(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			eng, err := crawler.New(cfg, logger, opts...)
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = eng.Close(closeCtx)
			}()

			shutdownStatus := startStatusServer(cfg, eng, logger)
			defer shutdownStatus()

			result, err := eng.Resume(ctx, args[0])
			if err != nil {
				return fmt.Errorf("resume: %w", err)
			}
			reportResult(logger, result)
			return nil
		},
	}
}
