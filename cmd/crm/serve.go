package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crm/internal/metrics"
	"github.com/JonMunkholm/crm/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := a.cfg
			if cfg.Metrics.Enabled {
				a.metrics = metrics.New()
			}
			src, release, err := a.openSource(ctx)
			if err != nil {
				return err
			}
			defer release()

			slog.Info("configuration loaded",
				"addr", cfg.Server.Addr(),
				"source", cfg.Source.Kind,
				"metrics_enabled", cfg.Metrics.Enabled,
				"rate_limit", cfg.Security.RateLimit,
			)

			server := web.NewServer(web.Options{Config: cfg, Source: src, Metrics: a.metrics})

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
				return err
			}
			slog.Info("server stopped")
			return nil
		},
	}
}
