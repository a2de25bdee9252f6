package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fieldsync/internal/app/client/config"
	"fieldsync/internal/app/client/syncer"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync in the background while the server is reachable",
	Long: `daemon probes the server and starts a sync pass whenever it comes back online,
and periodically when sync_interval_seconds is set. SIGUSR1 counts as the app
returning to the foreground. Edits to config.yaml are applied without a restart.`,
	Annotations: map[string]string{"logs": "info"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		foreground := make(chan os.Signal, 1)
		signal.Notify(foreground, syscall.SIGUSR1)
		defer signal.Stop(foreground)

		reload := make(chan *config.Config, 1)
		if cfg.ConfigFile != "" {
			loader.Watch(func(c *config.Config) {
				select {
				case reload <- c:
				default:
				}
			}, func(err error) {
				log.Warn("ignoring invalid config change", slog.String("error", err.Error()))
			})
		}

		for {
			next, err := runDaemon(ctx, foreground, reload)
			if err != nil || next == nil {
				return err
			}

			app.Cleanup()
			closeErr := app.Close()
			app = nil
			if closeErr != nil {
				return closeErr
			}
			if serverURL != "" {
				next.ServerAddress = serverURL
			}
			cfg = next
			if app, err = newApp(ctx, cfg); err != nil {
				return err
			}
			log.Info("configuration reloaded", slog.String("server", cfg.BaseURL()))
		}
	},
}

// runDaemon drives the current app until ctx ends (nil config) or a reload arrives.
func runDaemon(ctx context.Context, foreground <-chan os.Signal, reload <-chan *config.Config) (*config.Config, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.OnStatus(func(st syncer.Status) {
		if st.State != syncer.StateIdle || st.LastReport == nil {
			return
		}
		r := st.LastReport
		log.Info("sync finished",
			slog.String("reason", r.Reason.String()),
			slog.Int("synced", r.Synced()),
			slog.Int("failed", r.Failed()),
			slog.Duration("took", r.Duration()),
		)
	})
	app.OnSessionInvalid(func() {
		log.Error("server rejected the token, run fieldsync auth login")
	})

	monitor := app.Monitor(func(online bool) {
		log.Info("connectivity changed", slog.Bool("online", online))
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	log.Info("daemon started", slog.String("server", cfg.BaseURL()))
	for {
		select {
		case <-ctx.Done():
			log.Info("daemon stopping")
			return nil, nil
		case c := <-reload:
			return c, nil
		case <-foreground:
			if err := app.TriggerSync(syncer.ReasonForeground); err != nil {
				log.Debug("foreground trigger ignored", slog.String("error", err.Error()))
			}
		}
	}
}
