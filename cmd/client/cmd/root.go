package cmd

import (
	"context"
	"fmt"
	"os"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client"
	"fieldsync/internal/app/client/config"
	"fieldsync/internal/utils/logger"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var (
	configDir string
	debug     bool
	serverURL string

	loader *config.Loader
	cfg    *config.Config
	log    *slog.Logger
	app    *client.App
)

var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "Offline-first field operations client",
	Long: `fieldsync records attendance, site logs and chiller readings on the device and
uploads them when the server is reachable. Tickets are pulled from the server and
changed through queued updates.

Every write lands in the local database first; nothing is lost while offline.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	err := rootCmd.Execute()
	if app != nil {
		app.Cleanup()
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", types.Fail("error:"), err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	if configDir != "" {
		if err := os.Setenv("CONFIG_DIR", configDir); err != nil {
			return err
		}
	}

	loader = config.NewLoader()
	var err error
	cfg, err = loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	} else if level == "info" && cmdQuiet(cmd) {
		// info logs would interleave with command output
		level = "warn"
	}
	log = logger.NewWithOptions(cfg.Env, logger.Options{Level: level, File: cfg.LogFile})

	app, err = newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(cmd.Context(), types.ClientAppKey, app))
	return nil
}

// cmdQuiet reports whether cmd prints results; long-running commands keep info logs.
func cmdQuiet(cmd *cobra.Command) bool {
	return cmd.Annotations["logs"] != "info"
}

func newApp(ctx context.Context, c *config.Config) (*client.App, error) {
	a, err := client.New(c, log)
	if err != nil {
		return nil, fmt.Errorf("init client: %w", err)
	}
	if err := a.Initialize(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init client: %w", err)
	}
	return a, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.fieldsync)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&types.JSONOutput, "json", false, "print JSON output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server address, overrides the config")
}
