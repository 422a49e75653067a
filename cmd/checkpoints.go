package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/checkpoint"
)

func newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect and manage saved crawl checkpoints",
	}
	cmd.AddCommand(newCheckpointsListCmd())
	cmd.AddCommand(newCheckpointsDeleteCmd())
	cmd.AddCommand(newCheckpointsCleanCmd())
	return cmd
}

func checkpointManager() (*checkpoint.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	mgr, err := checkpoint.NewManager(cfg.CheckpointDir, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("open checkpoint dir: %w", err)
	}
	return mgr, nil
}

func newCheckpointsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := checkpointManager()
			if err != nil {
				return err
			}
			cps, err := mgr.List()
			if err != nil {
				return fmt.Errorf("list checkpoints: %w", err)
			}
			if len(cps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no checkpoints")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tUPDATED\tVISITED\tQUEUED\tSUBSIDIES")
			for _, cp := range cps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
					cp.ID, cp.Name, cp.UpdatedAt.Format(time.RFC3339),
					len(cp.State.VisitedURLs), len(cp.State.QueuedItems),
					len(cp.Results.Subsidies))
			}
			return w.Flush()
		},
	}
}

func newCheckpointsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete CHECKPOINT_ID",
		Short: "Delete one checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := checkpointManager()
			if err != nil {
				return err
			}
			if err := mgr.Delete(args[0]); err != nil {
				return fmt.Errorf("delete checkpoint: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newCheckpointsCleanCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete checkpoints older than the given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := checkpointManager()
			if err != nil {
				return err
			}
			n, err := mgr.Cleanup(maxAge)
			if err != nil {
				return fmt.Errorf("clean checkpoints: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d checkpoint(s)\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", checkpoint.DefaultMaxAge, "delete checkpoints older than this")
	return cmd
}
