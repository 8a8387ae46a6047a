package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mmcdole/nearby/internal/config"
	"github.com/mmcdole/nearby/internal/directory"
	"github.com/mmcdole/nearby/internal/domain"
	"github.com/mmcdole/nearby/internal/loader"
	"github.com/mmcdole/nearby/internal/logging"
	"github.com/mmcdole/nearby/internal/notify"
	"github.com/mmcdole/nearby/internal/platform"
	"github.com/mmcdole/nearby/internal/platform/fcm"
	"github.com/mmcdole/nearby/internal/store"
	"github.com/spf13/cobra"
)

// App holds the wired components a command works with
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Notifier *notify.Notifier
	Loader   *loader.Loader

	closers []io.Closer
}

// newApp loads configuration and wires the store, notifier, directory
// client and loader. Only configuration errors are fatal.
func newApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*App, error) {
	cfg, err := config.LoadConfig(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app := &App{Config: cfg}

	logger, logFile, err := logging.New(logging.Options{
		File:     cfg.Logging.File,
		Level:    cfg.Logging.Level,
		Verbose:  opts.Verbose,
		Fallback: cmd.ErrOrStderr(),
		Version:  opts.Version,
		Command:  cmd.CommandPath(),
	})
	if err != nil {
		logger.Warn("file logging unavailable", "error", err)
	}
	app.closers = append(app.closers, logFile)
	app.Logger = logger

	app.Store = store.New(cfg.Cache.Dir, store.Options{
		RadiusMiles: cfg.Cache.RadiusMiles,
		Logger:      logger,
	})
	app.closers = append(app.closers, app.Store)

	var background domain.BackgroundContext
	if cfg.PushConfigured() {
		fb := cfg.Notifications.Firebase
		bg, err := fcm.NewBackground(ctx, fb.CredentialsFile, fb.DeviceToken)
		if err != nil {
			logger.Warn("push unavailable", "error", err)
		} else {
			background = bg
		}
	}

	capability := platform.NewTerminal(platform.TerminalOptions{
		In:         cmd.InOrStdin(),
		Out:        cmd.OutOrStdout(),
		Force:      cfg.Notifications.ForceTerminal,
		Permission: cfg.Permission(),
		Persist: func(p domain.Permission) error {
			return config.SavePermission(p, cfg.File)
		},
		Background: background,
	})

	app.Notifier = notify.New(capability, notify.NewPreferenceFile(cfg.Notifications.PreferencesFile), notify.Options{
		PublicKey:     cfg.Notifications.PublicKey,
		Icon:          cfg.Notifications.Icon,
		Logger:        logger,
		Subscriptions: notify.NewSubscriptionFile(cfg.Notifications.SubscriptionFile),
	})

	var client domain.DirectoryClient
	if cfg.Directory.URL != "" {
		client = directory.NewClient(cfg.Directory.URL, cfg.Directory.Token, cfg.Directory.Timeout, logger)
	}

	app.Loader = loader.New(app.Store, client, app.Notifier, loader.Options{Logger: logger})

	logger.Debug("app wired", "cache", cfg.Cache.Dir, "directory", cfg.Directory.URL, "push", background != nil)
	return app, nil
}

// Close releases the store and log file
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
}

// withApp runs fn with a wired App that is closed afterwards
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}
