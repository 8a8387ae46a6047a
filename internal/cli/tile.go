package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"
)

// TileOptions holds flags for the tile command.
type TileOptions struct {
	*RootOptions
	Location locationFlags
	Zoom     uint32
	Output   string
	Offline  bool
}

// NewTileCommand creates the tile command.
func NewTileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tile",
		Short: "Fetch the map tile covering a location, caching it for offline use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Zoom > 22 {
				return fmt.Errorf("zoom %d out of range: must be 0-22", opts.Zoom)
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				loc := opts.Location.coordinates(cmd)
				if loc == nil {
					current, err := app.Loader.CurrentLocation(ctx)
					if err != nil {
						return err
					}
					if current == nil {
						return errors.New("no location: pass --lat and --lng or run 'nearby location set'")
					}
					c := current.Coordinates()
					loc = &c
				}

				res, err := app.Loader.Tile(ctx, *loc, maptile.Zoom(opts.Zoom), opts.Offline)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				note := ""
				if res.FromCache {
					note = "cached"
				}
				printHeader(out, fmt.Sprintf("tile %d/%d/%d", res.Tile.Z, res.Tile.X, res.Tile.Y), note)
				printKV(out, "bytes", len(res.Data))

				if opts.Output != "" {
					if err := os.WriteFile(opts.Output, res.Data, 0644); err != nil {
						return fmt.Errorf("failed to write tile: %w", err)
					}
					printKV(out, "written", opts.Output)
				}
				return nil
			})
		},
	}

	opts.Location.register(cmd)
	cmd.Flags().Uint32VarP(&opts.Zoom, "zoom", "z", 14, "zoom level")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the tile to this file")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "serve from the local cache only")

	return cmd
}
