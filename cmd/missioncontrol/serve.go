package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			logger.Info().
				Str("environment", cfg.Environment).
				Str("addr", cfg.HTTPAddr).
				Str("driver", cfg.Driver()).
				Str("auth_mode", cfg.AuthMode).
				Bool("todoist_enabled", cfg.TodoistEnabled()).
				Bool("slack_enabled", cfg.SlackEnabled()).
				Msg("starting mission control")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			a.seed(ctx)

			srv := a.server()
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			logger.Info().Msg("shutting down gracefully")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("api server shutdown error")
			}
			logger.Info().Msg("mission control stopped")
			return nil
		},
	}
}
