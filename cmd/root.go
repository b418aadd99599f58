// Package cmd defines the prospector command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/app"
	"github.com/JakeFAU/linkedin-prospector/internal/config"
	"github.com/JakeFAU/linkedin-prospector/internal/logging"
)

const shutdownTimeout = 15 * time.Second

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the service factory. Tests swap it to inject fakes.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd builds the command tree. The returned func releases whatever
// services the executed command built and must run even when it failed.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile  string
		services *app.App
		logger   *zap.Logger
	)

	cmd := &cobra.Command{
		Use:   "prospector",
		Short: "Collect LinkedIn leads and send paced connection requests.",
		Long: `prospector drives a real Chrome profile to harvest people from LinkedIn
search, Sales Navigator and company roster pages into a local SQLite
database, and sends queued connection requests under daily caps and
business hours.`,
		SilenceUsage: true,

		// Every subcommand shares one service container built from config.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err = logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Dir:         cfg.Paths().Logs,
			})
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			services, err = newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, services))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default prospector.yaml in . or the user config dir)")

	cmd.AddCommand(
		newServeCmd(),
		newSearchCmd(),
		newScrapeURLCmd(),
		newSessionCmd(),
		newConnectCmd(),
		newLeadsCmd(),
		newRunsCmd(),
		newDebugCmd(),
	)

	shutdown := func() {
		if services != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := services.Close(ctx); err != nil {
				services.Logger.Warn("error closing application services", zap.Error(err))
			}
			services = nil
		}
		if logger != nil {
			_ = logger.Sync()
		}
	}
	return cmd, shutdown
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	root, shutdown := newRootCmd()
	err := root.ExecuteContext(context.Background())
	shutdown()
	if err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	services, ok := ctx.Value(appKey).(*app.App)
	if !ok || services == nil {
		return nil, errors.New("application services not initialized")
	}
	return services, nil
}
