package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/mmcdole/nearby/internal/loader"
	"github.com/spf13/cobra"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Location locationFlags
	Category string
	Offline  bool
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search businesses and events, falling back to the local cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				res, err := app.Loader.Search(ctx, loader.SearchRequest{
					Query:    query,
					Filters:  domain.Filters{Category: opts.Category},
					Location: opts.Location.coordinates(cmd),
					Offline:  opts.Offline,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				var source string
				switch {
				case res.FromCache:
					source = "cached"
				case res.Local:
					source = "offline"
				}
				printHeader(out, fmt.Sprintf("%d results for %q", res.Total, query), source)
				printRaw(out, res.Results)
				if len(res.Suggestions) > 0 {
					printKV(out, "did you mean", strings.Join(res.Suggestions, ", "))
				}
				return nil
			})
		},
	}

	opts.Location.register(cmd)
	cmd.Flags().StringVar(&opts.Category, "category", "", "filter by category")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "search the local cache only")

	return cmd
}
