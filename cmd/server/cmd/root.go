package cmd

import (
	"context"
	"fmt"
	"os"

	"fieldsync/internal/app/server/api"
	"fieldsync/internal/app/server/config"
	"fieldsync/internal/app/server/crypto"
	"fieldsync/internal/domain/session"
	"fieldsync/internal/infrastructure/storage"
	"fieldsync/internal/utils/logger"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fieldsync-server",
	Short: "Development sync server for the fieldsync client",
	Long: `fieldsync-server accepts uploads from the fieldsync client, serves bulk pulls
and reference data, and issues device tokens.

Without DATABASE_URI everything is kept in memory and lost on exit.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == hashTokenCmd.Name() {
		return nil
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log = logger.NewWithOptions(cfg.Env, logger.Options{
		Level: cfg.Logger.LogLevel,
		File:  cfg.Logger.LogFile,
	})
	return nil
}

// openServices opens the storage backend and builds the domain services over it.
// The caller closes the backend.
func openServices(ctx context.Context) (*api.Services, *storage.Backend, error) {
	backend, err := storage.Open(ctx, cfg.DB.DatabaseURI, log)
	if err != nil {
		return nil, nil, err
	}

	var static session.StaticVerifier
	if len(cfg.Auth.TokenHashes) > 0 {
		v, err := crypto.NewBcryptVerifier(cfg.Auth.TokenHashes)
		if err != nil {
			_ = backend.Close()
			return nil, nil, fmt.Errorf("api token hashes: %w", err)
		}
		static = v
	}

	services := api.NewServices(backend, static, log, session.WithTTL(cfg.Auth.SessionTTL))
	return services, backend, nil
}

func init() {
	rootCmd.AddCommand(serveCmd, hashTokenCmd, issueTokenCmd, seedTicketCmd)
}
