package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fieldsync/cmd/client/cmd/auth"
	"fieldsync/cmd/client/cmd/cache"
	"fieldsync/cmd/client/cmd/data"
	"fieldsync/cmd/client/cmd/record"
	"fieldsync/cmd/client/cmd/sync"
	"fieldsync/cmd/client/cmd/ticket"
	"fieldsync/cmd/client/cmd/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	initServer string
	initTLS    bool
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file and check the server",
	Long: `init writes config.yaml into the configuration directory and checks that the
server answers its health probe. An unreachable server is not an error: the client
works offline and uploads later.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := filepath.Join(cfg.ConfigDir, "config.yaml")
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := os.MkdirAll(cfg.ConfigDir, 0o700); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		v := viper.New()
		v.Set("server_address", initServer)
		v.Set("enable_tls", initTLS)
		v.Set("api_prefix", cfg.APIPrefix)
		v.Set("sync_cooldown_seconds", cfg.SyncCooldownSeconds)
		v.Set("probe_interval_seconds", cfg.ProbeIntervalSeconds)
		if err := v.WriteConfigAs(path); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s wrote %s\n", types.OK("✓"), path)

		// reopen against the address just written
		cfg.ServerAddress, cfg.EnableTLS = initServer, initTLS
		app.Cleanup()
		closeErr := app.Close()
		app = nil
		if closeErr != nil {
			return closeErr
		}
		reopened, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		app = reopened

		fmt.Fprintf(out, "checking %s ... ", cfg.BaseURL())
		if err := app.CheckConnection(cmd.Context()); err != nil {
			fmt.Fprintf(out, "%s\n", types.Warn("unreachable, records will be queued until it is"))
		} else {
			fmt.Fprintf(out, "%s\n", types.OK("ok"))
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next: save your API token with", types.Bold("fieldsync auth login"))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initServer, "server-address", "localhost:8080", "server host:port or URL")
	initCmd.Flags().BoolVar(&initTLS, "tls", false, "use https")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")

	rootCmd.AddCommand(initCmd, statusCmd, daemonCmd)

	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd, auth.LogoutCmd)

	rootCmd.AddCommand(record.RecordCmd)
	record.RecordCmd.AddCommand(record.CreateCmd, record.UpdateCmd, record.GetCmd, record.ListCmd, record.PendingCmd)

	rootCmd.AddCommand(ticket.TicketCmd)
	ticket.TicketCmd.AddCommand(ticket.StatusCmd, ticket.EditCmd, ticket.CommentCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(sync.PullCmd, sync.AutoCmd)

	rootCmd.AddCommand(cache.CacheCmd)
	cache.CacheCmd.AddCommand(cache.GetCmd, cache.RefreshCmd, cache.KeysCmd)

	rootCmd.AddCommand(data.DataCmd)
	data.DataCmd.AddCommand(data.WipeCmd, data.PruneCmd)
}
