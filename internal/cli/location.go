package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/nearby/internal/store"
	"github.com/spf13/cobra"
)

func formatLocation(lat, lng float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lng)
}

// NewLocationCommand creates the location command group.
func NewLocationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Manage the cached device location",
	}

	cmd.AddCommand(newLocationSetCommand(rootOpts))
	cmd.AddCommand(newLocationShowCommand(rootOpts))

	return cmd
}

func newLocationSetCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		loc      locationFlags
		accuracy float64
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Record the device location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := loc.coordinates(cmd)
			if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
				return fmt.Errorf("coordinates out of range: %s", formatLocation(c.Lat, c.Lng))
			}

			var acc *float64
			if cmd.Flags().Changed("accuracy") {
				acc = &accuracy
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				if err := app.Loader.UpdateLocation(ctx, *c, acc); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "location saved: "+formatLocation(c.Lat, c.Lng))
				return nil
			})
		},
	}

	loc.register(cmd)
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "accuracy in meters")

	return cmd
}

func newLocationShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cached device location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()

				loc, err := app.Loader.CurrentLocation(ctx)
				if err != nil {
					return err
				}
				if loc == nil {
					printWarning(out, "no location cached in the last 24h")
					return nil
				}

				printKV(out, "location", formatLocation(loc.Lat, loc.Lng))
				if loc.Accuracy != nil {
					printKV(out, "accuracy", fmt.Sprintf("%.0fm", *loc.Accuracy))
				}
				printKV(out, "updated", time.UnixMilli(loc.Timestamp).Format(time.RFC3339))
				c := loc.Coordinates()
				printKV(out, "cache key", store.LocationHash(&c))
				return nil
			})
		},
	}
}
