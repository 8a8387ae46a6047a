package cli

import (
	"context"
	"fmt"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/mmcdole/nearby/internal/loader"
	"github.com/spf13/cobra"
)

// locationFlags are the --lat/--lng pair shared by several commands
type locationFlags struct {
	lat float64
	lng float64
}

func (f *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "latitude (defaults to the cached location)")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "longitude (defaults to the cached location)")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
}

// coordinates returns the flag location, or nil when the flags weren't given
func (f *locationFlags) coordinates(cmd *cobra.Command) *domain.Coordinates {
	if !cmd.Flags().Changed("lat") {
		return nil
	}
	return &domain.Coordinates{Lat: f.lat, Lng: f.lng}
}

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Location locationFlags
	Category string
	Radius   float64
	Limit    int
	Offline  bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:       "sync <businesses|events>",
		Short:     "Fetch a collection, announce new entries and cache it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.CollectionBusinesses), string(domain.CollectionEvents)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.Collection(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown collection %q: must be businesses or events", args[0])
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				return runSync(ctx, cmd, app, opts, kind)
			})
		},
	}

	opts.Location.register(cmd)
	cmd.Flags().StringVar(&opts.Category, "category", "", "filter by category")
	cmd.Flags().Float64Var(&opts.Radius, "radius", 0, "search radius in miles")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records to fetch")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "serve from the local cache only")

	return cmd
}

func runSync(ctx context.Context, cmd *cobra.Command, app *App, opts *SyncOptions, kind domain.Collection) error {
	app.Notifier.Initialize(ctx)

	res, err := app.Loader.Load(ctx, loader.Request{
		Kind: kind,
		Filters: domain.Filters{
			Category:    opts.Category,
			RadiusMiles: opts.Radius,
			Limit:       opts.Limit,
		},
		Location: opts.Location.coordinates(cmd),
		Offline:  opts.Offline,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	note := fmt.Sprintf("%d", len(res.Records))
	if res.FromCache {
		note += ", cached"
	}
	printHeader(out, string(kind), note)
	if res.FetchErr != nil {
		printWarning(out, fmt.Sprintf("offline: %v", res.FetchErr))
	}
	printRecords(out, res.Records)
	return nil
}
