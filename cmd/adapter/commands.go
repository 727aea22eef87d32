package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/donewell-adapter/internal/app"
	"github.com/xela07ax/donewell-adapter/internal/domain"
	"github.com/xela07ax/donewell-adapter/internal/infra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "adapter",
		Short:         "DoneWell health adapter",
		Long:          "Health, deploy and incident endpoints that report site status to external monitoring.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newCheckCommand())
	return root
}

// bootstrap: конфиг -> логгер -> контейнер.
func bootstrap(ctx context.Context) (*app.Container, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	c, err := app.BuildContainer(ctx, cfg, logger, os.Stdout)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return c, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			defer func() { _ = c.Logger.Sync() }()

			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *app.Container) error {
	cfg := c.Config
	logger := c.Logger.Named("main")

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      c.Server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Метрики на отдельном listener, чтобы /metrics не торчал наружу вместе с health
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics listener started", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("health adapter started",
			zap.String("addr", srv.Addr),
			zap.String("site_id", cfg.Site.ID),
			zap.String("version", cfg.Site.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("health adapter stopping...")

	// Graceful Shutdown: даем запросам в полете завершиться
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("health adapter exited properly")
	return nil
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the aggregate health check once and print the report",
		Long:  "Runs the same probes as GET /health, prints the JSON report and exits non-zero unless status is ok.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			defer func() { _ = c.Logger.Sync() }()

			report := c.Health.Aggregate(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Status != domain.StatusOK {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}
