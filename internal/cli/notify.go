package cli

import (
	"context"
	"fmt"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/spf13/cobra"
)

// NewNotifyCommand creates the notify command group.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification permission and delivery",
	}

	cmd.AddCommand(newNotifyPermissionCommand(rootOpts))
	cmd.AddCommand(newNotifyStatusCommand(rootOpts))
	cmd.AddCommand(newNotifyTestCommand(rootOpts))

	return cmd
}

func newNotifyPermissionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "permission",
		Short: "Ask for permission to show notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				if !app.Notifier.IsNotificationSupported() {
					printWarning(out, "notifications are not supported on this terminal")
					return nil
				}

				granted := app.Notifier.RequestPermission(ctx)
				fmt.Fprintln(out)
				if granted {
					printSuccess(out, "notifications enabled")
				} else {
					printWarning(out, "notifications not enabled")
				}
				printKV(out, "state", app.Notifier.State())
				return nil
			})
		},
	}
}

func newNotifyStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show notification support and subscription state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				app.Notifier.Initialize(ctx)

				out := cmd.OutOrStdout()
				printKV(out, "supported", app.Notifier.IsNotificationSupported())
				printKV(out, "push", app.Notifier.IsPushSupported())
				printKV(out, "state", app.Notifier.State())
				return nil
			})
		},
	}
}

func newNotifyTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Show a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				app.Notifier.Initialize(ctx)

				delivered := app.Notifier.ShowNotification(ctx, domain.Notification{
					Title: "nearby",
					Body:  joinNonEmpty("Notifications are working", app.Config.Directory.URL),
					Tag:   "test",
					Data:  map[string]string{"type": "test"},
				})
				if !delivered {
					printWarning(cmd.OutOrStdout(), "notification not delivered; run 'nearby notify permission' first")
				}
				return nil
			})
		},
	}
}
