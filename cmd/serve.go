package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var startWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ops server, session monitor and connect scheduler",
		Long: `Serves the loopback ops API and keeps the session monitor running until
interrupted. The connect scheduler starts when asked through the API, or
immediately with --start-worker.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, startWorker)
		},
	}
	cmd.Flags().BoolVar(&startWorker, "start-worker", false, "start the connect scheduler at boot")
	return cmd
}

func runServe(cmd *cobra.Command, startWorker bool) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := a.Logger

	a.SweepLogs(ctx)
	if startWorker {
		a.Worker.Start(ctx)
	}

	srv := &http.Server{
		Addr:              a.Config.Addr(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.Monitor.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("serve stopped with error", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
