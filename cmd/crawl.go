package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/api"
	"github.com/hojonavi/hojokin-harvester/internal/config"
	"github.com/hojonavi/hojokin-harvester/internal/crawler"
	"github.com/hojonavi/hojokin-harvester/internal/store"
)

func newCrawlCmd() *cobra.Command {
	var (
		target   string
		depth    int
		pages    int
		headless string
	)

	cmd := &cobra.Command{
		Use:   "crawl [URL...]",
		Short: "Crawl entry URLs and extract subsidy records",
		Long: `crawl walks entry URLs breadth-first, extracting subsidy records from
detail pages and linked PDFs. With URL arguments it runs an ad hoc
crawl; with --target it runs one named target from the config; with
neither it runs every configured target in order. Progress is
checkpointed periodically so an interrupted run can be picked up with
"resume".`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("depth") {
				cfg.MaxDepth = depth
			}
			if cmd.Flags().Changed("pages") {
				cfg.MaxPages = pages
			}
			if cmd.Flags().Changed("headless") {
				cfg.UseHeadless = config.HeadlessMode(headless)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			runs, err := plannedRuns(cfg, args, target)
			if err != nil {
				return err
			}
			return runCrawls(cmd.Context(), cfg, runs)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "run one named target from the config")
	cmd.Flags().IntVar(&depth, "depth", 0, "override crawler.max_depth")
	cmd.Flags().IntVar(&pages, "pages", 0, "override crawler.max_pages")
	cmd.Flags().StringVar(&headless, "headless", "", "override crawler.use_headless (true|false|auto)")
	return cmd
}

// crawlRun is one engine invocation: a checkpoint name and its entry URLs.
type crawlRun struct {
	name string
	urls []string
}

func plannedRuns(cfg config.Config, args []string, target string) ([]crawlRun, error) {
	switch {
	case len(args) > 0 && target != "":
		return nil, fmt.Errorf("pass URLs or --target, not both")
	case len(args) > 0:
		return []crawlRun{{name: "adhoc", urls: args}}, nil
	case target != "":
		t, ok := cfg.TargetByName(target)
		if !ok {
			return nil, fmt.Errorf("target %q is not configured", target)
		}
		return []crawlRun{{name: t.Name, urls: t.URLs}}, nil
	case len(cfg.Targets) > 0:
		runs := make([]crawlRun, 0, len(cfg.Targets))
		for _, t := range cfg.Targets {
			runs = append(runs, crawlRun{name: t.Name, urls: t.URLs})
		}
		return runs, nil
	default:
		return nil, fmt.Errorf("no URLs given and no targets configured")
	}
}

func runCrawls(ctx context.Context, cfg config.Config, runs []crawlRun) error {
	logger, err := newLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
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

	for _, run := range runs {
		result, err := eng.Crawl(ctx, run.urls, run.name)
		if err != nil {
			return fmt.Errorf("crawl %s: %w", run.name, err)
		}
		reportResult(logger.With(zap.String("target", run.name)), result)
	}
	return nil
}

// storeOptions wires a Postgres record store when one is configured and the
// run is not a dry run. The returned cleanup closes the store's pool.
func storeOptions(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]crawler.Option, func(), error) {
	if cfg.DryRun || cfg.DatabaseURL == "" {
		return nil, func() {}, nil
	}
	st, err := store.NewSubsidyStore(ctx, store.SubsidyStoreConfig{DSN: cfg.DatabaseURL}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect store: %w", err)
	}
	return []crawler.Option{crawler.WithRecordStore(st)}, st.Close, nil
}

// engineStatus adapts the engine to the status server's snapshot interface.
type engineStatus struct {
	eng *crawler.Engine
}

func (s engineStatus) Snapshot() api.StatusSnapshot {
	return api.StatusSnapshot{
		Running:    s.eng.Running(),
		QueueDepth: s.eng.QueueLen(),
		Stats:      s.eng.Stats(),
	}
}

func startStatusServer(cfg config.Config, eng *crawler.Engine, logger *zap.Logger) func() {
	if cfg.StatusAddr == "" {
		return func() {}
	}
	srv := api.NewServer(engineStatus{eng: eng}, logger)
	srv.Start(cfg.StatusAddr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func reportResult(logger *zap.Logger, result *crawler.Result) {
	logger.Info("crawl finished",
		zap.Int("pages_visited", result.Stats.VisitedURLs),
		zap.Int("pages_skipped", result.Stats.SkippedURLs),
		zap.Int("subsidies", len(result.Subsidies)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("elapsed", result.Stats.EndTime.Sub(result.Stats.StartTime)),
	)
	for _, e := range result.Errors {
		logger.Warn("page failed", zap.String("url", e.URL), zap.String("error", e.Message))
	}
}
