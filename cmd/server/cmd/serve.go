package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fieldsync/internal/app/server/api"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

const localDevice = "local-dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		services, backend, err := openServices(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := backend.Close(); err != nil {
				log.Error("close storage", slog.String("error", err.Error()))
			}
		}()

		if cfg.IsLocal() && len(cfg.Auth.TokenHashes) == 0 {
			token, err := services.Session.Create(ctx, localDevice)
			if err != nil {
				return err
			}
			log.Warn("no api token hashes configured, issued a local device token",
				slog.String("device_id", localDevice),
				slog.String("token", token),
			)
		}

		srv := &http.Server{
			Addr:              cfg.Server.RunAddress,
			Handler:           api.New(services, backend.Kind, log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server started",
				slog.String("address", cfg.Server.RunAddress),
				slog.String("storage", backend.Kind),
				slog.String("env", cfg.Env),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	},
}
