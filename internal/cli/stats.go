package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many entries the local cache holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				stats, err := app.Store.Stats()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printHeader(out, "cache", app.Config.Cache.Dir)
				printKV(out, "businesses", stats.Businesses)
				printKV(out, "events", stats.Events)
				printKV(out, "searches", stats.Searches)
				printKV(out, "tiles", stats.Tiles)

				loc, err := app.Loader.CurrentLocation(ctx)
				if err != nil {
					return err
				}
				if loc != nil {
					printKV(out, "location", formatLocation(loc.Lat, loc.Lng))
				} else {
					printKV(out, "location", "unknown")
				}
				return nil
			})
		},
	}
}

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	Watch bool
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cache entries past the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()

				if opts.Watch {
					ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					printKV(out, "pruning every", app.Config.Cache.PruneInterval)
					app.Store.RunPruner(ctx, app.Config.Cache.PruneInterval)
					return nil
				}

				removed, err := app.Store.PruneExpired()
				if err != nil {
					return err
				}
				printKV(out, "removed", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "keep pruning on the configured interval until interrupted")

	return cmd
}
