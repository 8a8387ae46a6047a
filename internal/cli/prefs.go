package cli

import (
	"context"
	"io"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/spf13/cobra"
)

// prefFlags maps flag names to the preference they change
var prefFlags = []struct {
	name  string
	usage string
	field func(u *domain.PreferencesUpdate) **bool
}{
	{"enabled", "master switch for notifications", func(u *domain.PreferencesUpdate) **bool { return &u.Enabled }},
	{"new-businesses", "announce new businesses", func(u *domain.PreferencesUpdate) **bool { return &u.NewBusinesses }},
	{"new-events", "announce new events", func(u *domain.PreferencesUpdate) **bool { return &u.NewEvents }},
	{"business-updates", "announce changed businesses", func(u *domain.PreferencesUpdate) **bool { return &u.BusinessUpdates }},
	{"event-updates", "announce changed events", func(u *domain.PreferencesUpdate) **bool { return &u.EventUpdates }},
	{"nearby-alerts", "alerts for places near you", func(u *domain.PreferencesUpdate) **bool { return &u.NearbyAlerts }},
}

// NewPrefsCommand creates the prefs command. Without flags it prints the
// current preferences; each given flag updates one of them.
func NewPrefsCommand(rootOpts *RootOptions) *cobra.Command {
	values := make([]bool, len(prefFlags))

	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change notification preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var update domain.PreferencesUpdate
			changed := false
			for i, f := range prefFlags {
				if cmd.Flags().Changed(f.name) {
					*f.field(&update) = &values[i]
					changed = true
				}
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				prefs := app.Notifier.Preferences()
				if changed {
					var err error
					prefs, err = app.Notifier.UpdatePreferences(ctx, update)
					if err != nil {
						return err
					}
				}
				printPreferences(cmd.OutOrStdout(), prefs)
				return nil
			})
		},
	}

	for i, f := range prefFlags {
		cmd.Flags().BoolVar(&values[i], f.name, false, f.usage)
	}

	return cmd
}

func printPreferences(w io.Writer, p domain.NotificationPreferences) {
	printHeader(w, "notification preferences", "")
	printKV(w, "enabled", onOff(p.Enabled))
	printKV(w, "new businesses", onOff(p.NewBusinesses))
	printKV(w, "new events", onOff(p.NewEvents))
	printKV(w, "biz updates", onOff(p.BusinessUpdates))
	printKV(w, "event updates", onOff(p.EventUpdates))
	printKV(w, "nearby alerts", onOff(p.NearbyAlerts))
}
